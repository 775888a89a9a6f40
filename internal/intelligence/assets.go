package intelligence

import "strings"

// StableToken is one entry of the stable-asset registry. Amounts recorded for
// these tokens are raw smallest units, so Decimals is needed by anything that
// wants to display them.
type StableToken struct {
	Address  string
	Symbol   string
	Decimals int
}

var knownStables = []StableToken{
	{Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Symbol: "USDC", Decimals: 6},
	{Address: "0xdac17f958d2ee523a2206206994597c13d831ec7", Symbol: "USDT", Decimals: 6},
	{Address: "0x6b175474e89094c44da98b954eedeac495271d0f", Symbol: "DAI", Decimals: 18},
	{Address: "0x853d955acef822db058eb8505911ed77f175b99e", Symbol: "FRAX", Decimals: 18},
	{Address: "0x4fabb145d64652a948d72533023f6e7a623c7c53", Symbol: "BUSD", Decimals: 18},
	{Address: "0x5f98805a4e8be255a32880fdec7f6728c6568ba0", Symbol: "LUSD", Decimals: 18},
	{Address: "0x8e870d67f660d95d5be530380d0ec0bd388289e1", Symbol: "USDP", Decimals: 18},
	{Address: "0x0000000000085d4780b73119b644ae5ecd22b376", Symbol: "TUSD", Decimals: 18},
	{Address: "0x57ab1ec28d129707052df4df418d58a2d46d5f51", Symbol: "sUSD", Decimals: 18},
	{Address: "0x056fd409e1d7a124bd7017459dfea2f387b6d5cd", Symbol: "GUSD", Decimals: 2},
	{Address: "0x6c3ea9036406852006290770bebb3a1e7c638c1d", Symbol: "PYUSD", Decimals: 6},
	{Address: "0xf939e0a03fb07f59a73314e73794be0e57ac1b4e", Symbol: "crvUSD", Decimals: 18},
	{Address: "0x4c9edd5852cd905f086c759e8383e09bff1e68b3", Symbol: "USDe", Decimals: 18},
	{Address: "0x168e4498ee218becdf565fd250eeba588c56a907", Symbol: "eUSD", Decimals: 18},
}

var knownBridges = map[string]struct{}{
	"0x8731d54e9d02c286767d56ac03e8037c07e01e98": {},
	"0xafc0e0adf0e1f2a4079dfd1a92fa1862f33e1e2c": {},
	"0x401f6c983ea34274ec46f84d70b31c151321188b": {},
	"0xa0ed0d811d59e480e3cccb8d686d8f79f9e2a1c3": {},
	"0x4dbd4fc535ac27206064b68ffcf827b0a60bab3f": {},
	"0x25ace71c97b33cc4729cf772ae268934f7ab5fa1": {},
	"0x99c9fc46f92e8a1c0dec1b1747d010903e884be1": {},
	"0x1908e2bf4a88f91e9e4bccc8e8a3dd059cbf03b0": {},
	"0x32400084c286cf3e17e7b677ea9583e60a000324": {},
	"0xb8901acb165ed027e32754e0ffe830802919727f": {},
	"0x914c35c0b203f9c8efb0e4dd15189c13ad2451e2": {},
	"0x5d3fd4d874b64b1a71adabf643b2b8f401ef86a1": {},
	"0x8898b472c54c31894e3b9bb83c3bc2a55c2af2ad": {},
	"0x5427fefa711eff984124bfbb1ab6fbf5e3da1820": {},
	"0x636af16bf2f682d060823b9a58591c6d384457d0": {},
	"0x10a99f4c2cb74c3ce00c8e531bd76dbb7279f2c5": {},
	"0x3ee18b2214aff97000d974cf647e7c347e8fa585": {},
	"0x98a5737749490856b401db5dc27f522fc314a4e1": {},
	"0xf951e335afb289353dc249e82926178eac7ded78": {},
	"0x2796317b0ff8538f253012862c06787adfb8ceb6": {},
	"0x6c6bc977e13df9b0de53b251522280bb72383700": {},
	"0xd00ae08403b9bbb9124bb305c09058e32cc39a56": {},
	"0x8f8a8b84a0d5d8bcee66216c0da8ceab89cb40e4": {},
	"0x0fc3657899693648bba4dbd2d5d73f39e4f72822": {},
}

// StableByAddress looks up the stable-asset registry by contract address.
func StableByAddress(addr string) (StableToken, bool) {
	key := strings.ToLower(addr)
	for _, t := range knownStables {
		if t.Address == key {
			return t, true
		}
	}
	return StableToken{}, false
}

// IsKnownBridgeAddress reports whether addr is a known bridge contract.
func IsKnownBridgeAddress(addr string) bool {
	if addr == "" {
		return false
	}
	_, ok := knownBridges[strings.ToLower(addr)]
	return ok
}
