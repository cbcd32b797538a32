package main

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/sirupsen/logrus"

	"sof-orchestrator/internal/config"
	"sof-orchestrator/internal/contracts"
	"sof-orchestrator/internal/ledger"
	"sof-orchestrator/internal/ledger/stub"
)

var (
	srvRaffle = ethtypes.MustNewAddress("0x3333333333333333333333333333333333333333")
	srvCurve  = ethtypes.MustNewAddress("0x1111111111111111111111111111111111111111")
	srvBuyer  = ethtypes.MustNewAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func newTestServer(l *stub.Ledger) *Server {
	cfg := &config.Config{}
	cfg.Contracts.Raffle = srvRaffle.String()
	return &Server{
		cfg: cfg,
		log: logrus.New(),
		session: &ledger.Session{
			Account: ethtypes.MustNewAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
			ChainID: 31337,
			Client:  l,
		},
		resolving: make(map[uint64]bool),
	}
}

func registerSeason(t *testing.T, l *stub.Ledger) {
	t.Helper()
	l.SetRead(srvRaffle, "getSeasonDetails", map[string]interface{}{
		"status":           big.NewInt(1),
		"startTime":        big.NewInt(0),
		"endTime":          big.NewInt(0),
		"totalTickets":     big.NewInt(0),
		"totalPrizePool":   big.NewInt(0),
		"bondingCurve":     srvCurve.String(),
		"prizeDistributor": "0x0000000000000000000000000000000000000000",
	})
}

// tradeEventLog builds a curve trade event record the way a node
// returns it: signature and indexed account in the topics, the amounts
// ABI-encoded in the data.
func tradeEventLog(t *testing.T, event *abi.Entry, account *ethtypes.Address0xHex, tickets, sof *big.Int, block uint64, txHash string) ledger.Log {
	t.Helper()

	var accountTopic [32]byte
	copy(accountTopic[12:], account[:])

	dataParams := abi.ParameterArray{
		{Name: "tokenAmount", Type: "uint256"},
		{Name: "sofAmount", Type: "uint256"},
	}
	data, err := dataParams.EncodeABIDataValues(map[string]interface{}{
		"tokenAmount": tickets,
		"sofAmount":   sof,
	})
	if err != nil {
		t.Fatalf("encode event data: %v", err)
	}

	return ledger.Log{
		Address: srvCurve,
		Topics: []ethtypes.HexBytes0xPrefix{
			event.SignatureHashBytes(),
			ethtypes.HexBytes0xPrefix(accountTopic[:]),
		},
		Data:        ethtypes.HexBytes0xPrefix(data),
		BlockNumber: block,
		TxHash:      txHash,
	}
}

func TestHandleActivity(t *testing.T) {
	l := stub.NewLedger()
	registerSeason(t, l)

	purchase := tradeEventLog(t, contracts.CurveTokensPurchased, srvBuyer, big.NewInt(100), big.NewInt(1_001_000), 5, "0xaaa1")
	sale := tradeEventLog(t, contracts.CurveTokensSold, srvBuyer, big.NewInt(40), big.NewInt(400_000), 9, "0xaaa2")
	// The stub returns every record for both event queries; the handler
	// splits them by signature topic.
	l.SetLogs([]ledger.Log{sale, purchase})

	srv := httptest.NewServer(newTestServer(l).routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/season/7/activity")
	if err != nil {
		t.Fatalf("GET activity: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body activityResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.SeasonID != 7 {
		t.Errorf("season_id = %d, want 7", body.SeasonID)
	}
	if len(body.Entries) != 2 {
		t.Fatalf("%d entries, want a purchase and a sale", len(body.Entries))
	}

	first := body.Entries[0]
	if first.Kind != "purchase" || first.BlockNumber != 5 {
		t.Errorf("first entry = %+v, want the purchase at block 5", first)
	}
	if first.Account != srvBuyer.String() {
		t.Errorf("account = %s, want %s", first.Account, srvBuyer)
	}
	if first.TicketAmount != "100" || first.SofAmount != "1001000" {
		t.Errorf("amounts = %s/%s, want 100/1001000", first.TicketAmount, first.SofAmount)
	}

	second := body.Entries[1]
	if second.Kind != "sale" || second.TicketAmount != "40" || second.TxHash != "0xaaa2" {
		t.Errorf("second entry = %+v, want the sale of 40 tickets", second)
	}
}

func TestHandleActivityBadSeasonID(t *testing.T) {
	srv := httptest.NewServer(newTestServer(stub.NewLedger()).routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/season/abc/activity")
	if err != nil {
		t.Fatalf("GET activity: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
