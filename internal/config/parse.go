package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseAddress validates one hex address. name is used in the error.
func ParseAddress(name, input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, fmt.Errorf("%s is required", name)
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid %s address: %s", name, input)
	}
	return common.HexToAddress(input), nil
}

// ParseTopic0 converts string topic0 hashes into common.Hash.
func ParseTopic0(inputs []string) ([]common.Hash, error) {
	topics := make([]common.Hash, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		data, err := hexutil.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("invalid topic0: %s", input)
		}
		if len(data) != 32 {
			return nil, fmt.Errorf("invalid topic0 length: %s", input)
		}
		topics = append(topics, common.BytesToHash(data))
	}
	return topics, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}

	if isNumeric(input) {
		return strconv.ParseUint(input, 10, 64)
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	if tm.Unix() < 0 {
		return 0, fmt.Errorf("timestamp before 1970: %s", input)
	}
	return uint64(tm.Unix()), nil
}

// ParseSecondsAgos parses oracle lookbacks given as seconds or durations (30, 5m).
func ParseSecondsAgos(inputs []string) ([]uint32, error) {
	out := make([]uint32, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if isNumeric(input) {
			v, err := strconv.ParseUint(input, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid lookback %s: %w", input, err)
			}
			out = append(out, uint32(v))
			continue
		}
		d, err := time.ParseDuration(input)
		if err != nil {
			return nil, fmt.Errorf("invalid lookback %s: %w", input, err)
		}
		if d < 0 || d/time.Second > 1<<32-1 {
			return nil, fmt.Errorf("lookback out of range: %s", input)
		}
		out = append(out, uint32(d/time.Second))
	}
	return out, nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
