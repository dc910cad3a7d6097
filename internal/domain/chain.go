package domain

// chainNames are the networks the marketplace knows how to label.
var chainNames = map[int64]string{
	1:     "Ethereum Mainnet",
	5:     "Goerli Testnet",
	56:    "BNB Smart Chain",
	137:   "Polygon Mainnet",
	246:   "Energy Web Chain",
	1285:  "Moonriver",
	80001: "Mumbai Testnet",
}

// ChainName returns a display name for chainID, or "" if unknown.
func ChainName(chainID int64) string {
	return chainNames[chainID]
}
