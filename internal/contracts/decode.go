package contracts

import (
	"fmt"
	"math/big"

	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"sof-orchestrator/internal/domain"
)

// fieldBigInt reads output field i as an unsigned integer.
// The ABI decoder represents uints, bools and addresses as *big.Int.
func fieldBigInt(cv *abi.ComponentValue, i int) (*big.Int, error) {
	if cv == nil || i >= len(cv.Children) {
		return nil, fmt.Errorf("missing output field %d", i)
	}
	v, ok := cv.Children[i].Value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("output field %d: expected integer, got %T", i, cv.Children[i].Value)
	}
	return v, nil
}

func fieldBool(cv *abi.ComponentValue, i int) (bool, error) {
	v, err := fieldBigInt(cv, i)
	if err != nil {
		return false, err
	}
	return v.Sign() != 0, nil
}

func fieldAddress(cv *abi.ComponentValue, i int) (*ethtypes.Address0xHex, error) {
	v, err := fieldBigInt(cv, i)
	if err != nil {
		return nil, err
	}
	var addr ethtypes.Address0xHex
	v.FillBytes(addr[:])
	return &addr, nil
}

func fieldBytes(cv *abi.ComponentValue, i int) ([]byte, error) {
	if cv == nil || i >= len(cv.Children) {
		return nil, fmt.Errorf("missing output field %d", i)
	}
	v, ok := cv.Children[i].Value.([]byte)
	if !ok {
		return nil, fmt.Errorf("output field %d: expected bytes, got %T", i, cv.Children[i].Value)
	}
	return v, nil
}

// SingleBigInt decodes a one-value output like calculateBuyPrice.
func SingleBigInt(cv *abi.ComponentValue) (*big.Int, error) {
	return fieldBigInt(cv, 0)
}

// SingleBool decodes a one-value bool output like isRequestFulfilled.
func SingleBool(cv *abi.ComponentValue) (bool, error) {
	return fieldBool(cv, 0)
}

// SingleBytes32 decodes a one-value bytes32 output like RAFFLE_ROLE.
func SingleBytes32(cv *abi.ComponentValue) (ethtypes.HexBytes0xPrefix, error) {
	b, err := fieldBytes(cv, 0)
	if err != nil {
		return nil, err
	}
	return ethtypes.HexBytes0xPrefix(b), nil
}

// CurveConfigFromValue maps curveConfig() outputs to the domain type.
func CurveConfigFromValue(cv *abi.ComponentValue) (*domain.CurveConfig, error) {
	totalSupply, err := fieldBigInt(cv, 0)
	if err != nil {
		return nil, fmt.Errorf("curveConfig: %w", err)
	}
	reserve, err := fieldBigInt(cv, 1)
	if err != nil {
		return nil, fmt.Errorf("curveConfig: %w", err)
	}
	step, err := fieldBigInt(cv, 2)
	if err != nil {
		return nil, fmt.Errorf("curveConfig: %w", err)
	}
	buyFee, err := fieldBigInt(cv, 3)
	if err != nil {
		return nil, fmt.Errorf("curveConfig: %w", err)
	}
	sellFee, err := fieldBigInt(cv, 4)
	if err != nil {
		return nil, fmt.Errorf("curveConfig: %w", err)
	}
	locked, err := fieldBool(cv, 5)
	if err != nil {
		return nil, fmt.Errorf("curveConfig: %w", err)
	}
	initialized, err := fieldBool(cv, 6)
	if err != nil {
		return nil, fmt.Errorf("curveConfig: %w", err)
	}

	return &domain.CurveConfig{
		TotalSupply:    totalSupply,
		ReserveBalance: reserve,
		CurrentStep:    step.Uint64(),
		BuyFeeBps:      buyFee.Uint64(),
		SellFeeBps:     sellFee.Uint64(),
		TradingLocked:  locked,
		Initialized:    initialized,
	}, nil
}

// SeasonFromValue maps getSeasonDetails() outputs to the domain type.
func SeasonFromValue(seasonID uint64, cv *abi.ComponentValue) (*domain.Season, error) {
	status, err := fieldBigInt(cv, 0)
	if err != nil {
		return nil, fmt.Errorf("getSeasonDetails: %w", err)
	}
	startTime, err := fieldBigInt(cv, 1)
	if err != nil {
		return nil, fmt.Errorf("getSeasonDetails: %w", err)
	}
	endTime, err := fieldBigInt(cv, 2)
	if err != nil {
		return nil, fmt.Errorf("getSeasonDetails: %w", err)
	}
	totalTickets, err := fieldBigInt(cv, 3)
	if err != nil {
		return nil, fmt.Errorf("getSeasonDetails: %w", err)
	}
	prizePool, err := fieldBigInt(cv, 4)
	if err != nil {
		return nil, fmt.Errorf("getSeasonDetails: %w", err)
	}
	curve, err := fieldAddress(cv, 5)
	if err != nil {
		return nil, fmt.Errorf("getSeasonDetails: %w", err)
	}
	distributor, err := fieldAddress(cv, 6)
	if err != nil {
		return nil, fmt.Errorf("getSeasonDetails: %w", err)
	}

	return &domain.Season{
		ID:                 seasonID,
		StartTime:          startTime.Int64(),
		EndTime:            endTime.Int64(),
		Status:             domain.SeasonStatus(status.Uint64()),
		TotalTickets:       totalTickets,
		TotalPrizePool:     prizePool,
		CurveAddress:       curve,
		DistributorAddress: distributor,
	}, nil
}

// DistributorRecordFromValue maps getSeason() outputs to the domain type.
func DistributorRecordFromValue(cv *abi.ComponentValue) (*domain.DistributorSeasonRecord, error) {
	token, err := fieldAddress(cv, 0)
	if err != nil {
		return nil, fmt.Errorf("distributor getSeason: %w", err)
	}
	winner, err := fieldAddress(cv, 1)
	if err != nil {
		return nil, fmt.Errorf("distributor getSeason: %w", err)
	}
	grand, err := fieldBigInt(cv, 2)
	if err != nil {
		return nil, fmt.Errorf("distributor getSeason: %w", err)
	}
	consolation, err := fieldBigInt(cv, 3)
	if err != nil {
		return nil, fmt.Errorf("distributor getSeason: %w", err)
	}
	funded, err := fieldBool(cv, 4)
	if err != nil {
		return nil, fmt.Errorf("distributor getSeason: %w", err)
	}
	claimed, err := fieldBool(cv, 5)
	if err != nil {
		return nil, fmt.Errorf("distributor getSeason: %w", err)
	}

	return &domain.DistributorSeasonRecord{
		Token:             token,
		GrandWinner:       winner,
		GrandAmount:       grand,
		ConsolationAmount: consolation,
		Funded:            funded,
		Claimed:           claimed,
	}, nil
}

// ZeroAddress reports whether addr is unset or the zero address.
func ZeroAddress(addr *ethtypes.Address0xHex) bool {
	if addr == nil {
		return true
	}
	for _, b := range addr {
		if b != 0 {
			return false
		}
	}
	return true
}
