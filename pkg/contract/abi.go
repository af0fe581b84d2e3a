package contract

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract member names.
const (
	MethodCount    = "getTestDataCount"
	MethodGet      = "getTestData"
	MethodAdd      = "addTestData"
	EventDataAdded = "TestDataAdded"
)

//go:embed abi/TestDataManager.json
var embeddedABI []byte

// DefaultABI returns the embedded TestDataManager ABI.
func DefaultABI() (abi.ABI, error) {
	return parseABI(embeddedABI)
}

// LoadABI reads an ABI from path. Both raw ABI arrays and Hardhat/Foundry
// artifacts (objects with an "abi" field) are accepted. An empty path
// returns the embedded ABI.
func LoadABI(path string) (abi.ABI, error) {
	if path == "" {
		return DefaultABI()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("reading abi file: %w", err)
	}

	parsed, err := parseABI(data)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parsing abi file %s: %w", path, err)
	}

	return parsed, nil
}

func parseABI(data []byte) (abi.ABI, error) {
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '{' {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}

		if err := json.Unmarshal(data, &artifact); err != nil {
			return abi.ABI{}, fmt.Errorf("decoding artifact: %w", err)
		}

		if len(artifact.ABI) == 0 {
			return abi.ABI{}, fmt.Errorf("artifact has no abi field")
		}

		data = artifact.ABI
	}

	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return abi.ABI{}, err
	}

	for _, name := range []string{MethodCount, MethodGet, MethodAdd} {
		if _, ok := parsed.Methods[name]; !ok {
			return abi.ABI{}, fmt.Errorf("abi is missing method %s", name)
		}
	}

	if _, ok := parsed.Events[EventDataAdded]; !ok {
		return abi.ABI{}, fmt.Errorf("abi is missing event %s", EventDataAdded)
	}

	return parsed, nil
}
