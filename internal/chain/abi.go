package chain

const erc20ABI = `[
	{
		"constant": true,
		"inputs": [{"name": "owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"type": "function"
	}
]`

const fixedRateExchangeABI = `[
	{
		"inputs": [
			{"name": "exchangeId", "type": "bytes32"},
			{"name": "datatokenAmount", "type": "uint256"},
			{"name": "consumeMarketSwapFeeAmount", "type": "uint256"}
		],
		"name": "calcBaseInGivenOutDT",
		"outputs": [
			{"name": "baseTokenAmount", "type": "uint256"},
			{"name": "oceanFeeAmount", "type": "uint256"},
			{"name": "publishMarketFeeAmount", "type": "uint256"},
			{"name": "consumeMarketFeeAmount", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`
