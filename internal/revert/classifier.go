// Package revert decodes ledger revert payloads into human-readable
// messages. The trade executor and the lifecycle orchestrator share it
// so error presentation is consistent across both.
package revert

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/hyperledger/firefly-signer/pkg/abi"

	"sof-orchestrator/internal/ledger"
)

// GenericFailure is the last-resort message when nothing usable can be
// extracted from the error.
const GenericFailure = "Transaction failed"

// stringError is the default revert("...") error, Error(string).
var stringError = &abi.Entry{
	Type: abi.Error,
	Name: "Error",
	Inputs: abi.ParameterArray{
		{Type: "string"},
	},
}

var stringErrorID = stringError.FunctionSelectorBytes()

// Classify maps a ledger error to a human-readable message. The
// precedence is strict: structured ABI decode of the revert payload,
// then the node's short message, then the raw error message, then
// GenericFailure. Each fallback is attempted only if the previous one
// yields nothing usable.
func Classify(err error, contractErrors abi.ABI) string {
	if err == nil {
		return GenericFailure
	}

	var revertErr *ledger.RevertError
	if errors.As(err, &revertErr) {
		if msg, ok := DecodePayload(revertErr.Data, contractErrors); ok {
			return msg
		}
		if revertErr.Message != "" {
			return revertErr.Message
		}
	}

	var rpcErr *ledger.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Message != "" {
		return rpcErr.Message
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return GenericFailure
}

// DecodePayload decodes a raw revert payload against the contract's
// error entries. The standard Error(string) is always recognized.
func DecodePayload(data []byte, contractErrors abi.ABI) (string, bool) {
	if len(data) < 4 {
		return "", false
	}
	selector := data[0:4]

	if bytes.Equal(selector, stringErrorID) {
		value, err := stringError.DecodeCallDataCtx(context.Background(), data)
		if err == nil && len(value.Children) > 0 {
			if msg, ok := value.Children[0].Value.(string); ok && msg != "" {
				return msg, true
			}
		}
		return "", false
	}

	for _, entry := range contractErrors {
		if entry.Type != abi.Error || entry.Name == "Error" {
			continue
		}
		if !bytes.Equal(selector, entry.FunctionSelectorBytes()) {
			continue
		}
		value, err := entry.DecodeCallDataCtx(context.Background(), data)
		if err != nil {
			return "", false
		}
		return formatCustomError(entry, value), true
	}

	return "", false
}

// formatCustomError renders a decoded custom error as Name(arg=value, ...).
func formatCustomError(entry *abi.Entry, value *abi.ComponentValue) string {
	if value == nil || len(value.Children) == 0 {
		return entry.Name
	}
	parts := make([]string, 0, len(value.Children))
	for i, child := range value.Children {
		name := ""
		if i < len(entry.Inputs) {
			name = entry.Inputs[i].Name
		}
		rendered := renderValue(child.Value)
		if name != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", name, rendered))
		} else {
			parts = append(parts, rendered)
		}
	}
	return fmt.Sprintf("%s(%s)", entry.Name, strings.Join(parts, ", "))
}

func renderValue(v interface{}) string {
	switch val := v.(type) {
	case *big.Int:
		return val.String()
	case string:
		return val
	case []byte:
		return "0x" + hex.EncodeToString(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
