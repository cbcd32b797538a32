// Package contracts holds the ABI surface of the raffle platform
// contracts: the per-season bonding curve, the raffle manager, the
// prize distributor, and the SOF settlement token.
package contracts

import "github.com/hyperledger/firefly-signer/pkg/abi"

// SOF token (ERC-20 subset used here).
var (
	ERC20BalanceOf = &abi.Entry{
		Type:    abi.Function,
		Name:    "balanceOf",
		Inputs:  abi.ParameterArray{{Name: "account", Type: "address"}},
		Outputs: abi.ParameterArray{{Name: "balance", Type: "uint256"}},
	}

	ERC20Allowance = &abi.Entry{
		Type: abi.Function,
		Name: "allowance",
		Inputs: abi.ParameterArray{
			{Name: "owner", Type: "address"},
			{Name: "spender", Type: "address"},
		},
		Outputs: abi.ParameterArray{{Name: "remaining", Type: "uint256"}},
	}

	ERC20Approve = &abi.Entry{
		Type: abi.Function,
		Name: "approve",
		Inputs: abi.ParameterArray{
			{Name: "spender", Type: "address"},
			{Name: "amount", Type: "uint256"},
		},
		Outputs: abi.ParameterArray{{Name: "ok", Type: "bool"}},
	}
)

// Bonding curve.
var (
	CurveConfigFn = &abi.Entry{
		Type: abi.Function,
		Name: "curveConfig",
		Outputs: abi.ParameterArray{
			{Name: "totalSupply", Type: "uint256"},
			{Name: "reserveBalance", Type: "uint256"},
			{Name: "currentStep", Type: "uint256"},
			{Name: "buyFeeBps", Type: "uint256"},
			{Name: "sellFeeBps", Type: "uint256"},
			{Name: "tradingLocked", Type: "bool"},
			{Name: "initialized", Type: "bool"},
		},
	}

	CurveCalculateBuyPrice = &abi.Entry{
		Type:    abi.Function,
		Name:    "calculateBuyPrice",
		Inputs:  abi.ParameterArray{{Name: "tokenAmount", Type: "uint256"}},
		Outputs: abi.ParameterArray{{Name: "price", Type: "uint256"}},
	}

	CurveCalculateSellPrice = &abi.Entry{
		Type:    abi.Function,
		Name:    "calculateSellPrice",
		Inputs:  abi.ParameterArray{{Name: "tokenAmount", Type: "uint256"}},
		Outputs: abi.ParameterArray{{Name: "price", Type: "uint256"}},
	}

	CurveBuyTokens = &abi.Entry{
		Type: abi.Function,
		Name: "buyTokens",
		Inputs: abi.ParameterArray{
			{Name: "tokenAmount", Type: "uint256"},
			{Name: "maxSofAmount", Type: "uint256"},
		},
	}

	CurveSellTokens = &abi.Entry{
		Type: abi.Function,
		Name: "sellTokens",
		Inputs: abi.ParameterArray{
			{Name: "tokenAmount", Type: "uint256"},
			{Name: "minSofAmount", Type: "uint256"},
		},
	}

	CurveTokensPurchased = &abi.Entry{
		Type: abi.Event,
		Name: "TokensPurchased",
		Inputs: abi.ParameterArray{
			{Name: "buyer", Type: "address", Indexed: true},
			{Name: "tokenAmount", Type: "uint256"},
			{Name: "sofAmount", Type: "uint256"},
		},
	}

	CurveTokensSold = &abi.Entry{
		Type: abi.Event,
		Name: "TokensSold",
		Inputs: abi.ParameterArray{
			{Name: "seller", Type: "address", Indexed: true},
			{Name: "tokenAmount", Type: "uint256"},
			{Name: "sofAmount", Type: "uint256"},
		},
	}
)

// Raffle manager.
var (
	RaffleGetSeasonDetails = &abi.Entry{
		Type:   abi.Function,
		Name:   "getSeasonDetails",
		Inputs: abi.ParameterArray{{Name: "seasonId", Type: "uint256"}},
		Outputs: abi.ParameterArray{
			{Name: "status", Type: "uint8"},
			{Name: "startTime", Type: "uint256"},
			{Name: "endTime", Type: "uint256"},
			{Name: "totalTickets", Type: "uint256"},
			{Name: "totalPrizePool", Type: "uint256"},
			{Name: "bondingCurve", Type: "address"},
			{Name: "prizeDistributor", Type: "address"},
		},
	}

	RaffleRequestSeasonEnd = &abi.Entry{
		Type:   abi.Function,
		Name:   "requestSeasonEnd",
		Inputs: abi.ParameterArray{{Name: "seasonId", Type: "uint256"}},
	}

	RaffleVRFRequestForSeason = &abi.Entry{
		Type:    abi.Function,
		Name:    "vrfRequestForSeason",
		Inputs:  abi.ParameterArray{{Name: "seasonId", Type: "uint256"}},
		Outputs: abi.ParameterArray{{Name: "requestId", Type: "uint256"}},
	}

	RaffleIsRequestFulfilled = &abi.Entry{
		Type:    abi.Function,
		Name:    "isRequestFulfilled",
		Inputs:  abi.ParameterArray{{Name: "requestId", Type: "uint256"}},
		Outputs: abi.ParameterArray{{Name: "fulfilled", Type: "bool"}},
	}

	RaffleExtractPrizePool = &abi.Entry{
		Type:   abi.Function,
		Name:   "extractPrizePool",
		Inputs: abi.ParameterArray{{Name: "seasonId", Type: "uint256"}},
	}

	RaffleFundDistributor = &abi.Entry{
		Type:   abi.Function,
		Name:   "fundDistributor",
		Inputs: abi.ParameterArray{{Name: "seasonId", Type: "uint256"}},
	}
)

// Prize distributor.
var (
	DistributorGetSeason = &abi.Entry{
		Type:   abi.Function,
		Name:   "getSeason",
		Inputs: abi.ParameterArray{{Name: "seasonId", Type: "uint256"}},
		Outputs: abi.ParameterArray{
			{Name: "token", Type: "address"},
			{Name: "grandWinner", Type: "address"},
			{Name: "grandAmount", Type: "uint256"},
			{Name: "consolationAmount", Type: "uint256"},
			{Name: "funded", Type: "bool"},
			{Name: "claimed", Type: "bool"},
		},
	}

	DistributorRaffleRole = &abi.Entry{
		Type:    abi.Function,
		Name:    "RAFFLE_ROLE",
		Outputs: abi.ParameterArray{{Name: "role", Type: "bytes32"}},
	}

	DistributorHasRole = &abi.Entry{
		Type: abi.Function,
		Name: "hasRole",
		Inputs: abi.ParameterArray{
			{Name: "role", Type: "bytes32"},
			{Name: "account", Type: "address"},
		},
		Outputs: abi.ParameterArray{{Name: "granted", Type: "bool"}},
	}
)

// CurveErrors are the bonding curve's custom revert errors, plus the
// standard Error(string), in decode-precedence order.
var CurveErrors = abi.ABI{
	{
		Type: abi.Error,
		Name: "Error",
		Inputs: abi.ParameterArray{
			{Type: "string"},
		},
	},
	{
		Type: abi.Error,
		Name: "InsufficientReserves",
		Inputs: abi.ParameterArray{
			{Name: "requested", Type: "uint256"},
			{Name: "available", Type: "uint256"},
		},
	},
	{
		Type:   abi.Error,
		Name:   "TradingLocked",
		Inputs: abi.ParameterArray{},
	},
	{
		Type:   abi.Error,
		Name:   "SlippageExceeded",
		Inputs: abi.ParameterArray{
			{Name: "actual", Type: "uint256"},
			{Name: "bound", Type: "uint256"},
		},
	},
	{
		Type:   abi.Error,
		Name:   "SeasonNotActive",
		Inputs: abi.ParameterArray{{Name: "status", Type: "uint8"}},
	},
}

// RaffleErrors are the raffle manager's custom revert errors.
var RaffleErrors = abi.ABI{
	{
		Type: abi.Error,
		Name: "Error",
		Inputs: abi.ParameterArray{
			{Type: "string"},
		},
	},
	{
		Type:   abi.Error,
		Name:   "InvalidSeasonStatus",
		Inputs: abi.ParameterArray{{Name: "status", Type: "uint8"}},
	},
	{
		Type:   abi.Error,
		Name:   "RandomnessNotFulfilled",
		Inputs: abi.ParameterArray{{Name: "requestId", Type: "uint256"}},
	},
	{
		Type:   abi.Error,
		Name:   "SeasonAlreadyFunded",
		Inputs: abi.ParameterArray{{Name: "seasonId", Type: "uint256"}},
	},
}
