package submit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethpandaops/testledger/pkg/ipfs"
	"github.com/mitchellh/mapstructure"
)

// Test results.
const (
	ResultPass = "pass"
	ResultFail = "fail"
)

// timestampLayout matches JavaScript's Date.prototype.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// ErrMalformedEnvelope is returned when a stored payload is not a JSON object.
var ErrMalformedEnvelope = errors.New("payload is not a JSON object")

// Metadata is the user-supplied part of a submission.
type Metadata struct {
	Name          string `json:"testName"`
	Type          string `json:"testType"`
	Result        string `json:"testResult"`
	ExecutionTime string `json:"executionTime"`
	TestData      string `json:"testData,omitempty"`
}

// Passed reports whether the result counts as a pass.
func (m Metadata) Passed() bool {
	return m.Result == ResultPass
}

// Validate checks the required fields.
func (m Metadata) Validate() error {
	var problems []string

	if len([]rune(m.Name)) < 3 {
		problems = append(problems, "test name must be at least 3 characters")
	}

	if m.Type == "" {
		problems = append(problems, "test type is required")
	}

	if m.Result == "" {
		problems = append(problems, "test result is required")
	}

	if m.ExecutionTime == "" {
		problems = append(problems, "execution time is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidMetadata, strings.Join(problems, "; "))
	}

	return nil
}

// envelope fixes the key order of the stored payload.
type envelope struct {
	TestName      string               `json:"testName"`
	TestType      string               `json:"testType"`
	TestResult    string               `json:"testResult"`
	ExecutionTime string               `json:"executionTime"`
	TestData      string               `json:"testData,omitempty"`
	IPFSFile      *ipfs.FileDescriptor `json:"ipfsFile,omitempty"`
	Timestamp     string               `json:"timestamp"`
}

// BuildEnvelope encodes the payload stored alongside a record. HTML
// characters are not escaped, so the output matches JSON.stringify. A nil
// file omits the ipfsFile key, as in seeded sample records.
func BuildEnvelope(meta Metadata, file *ipfs.FileDescriptor, now time.Time) (string, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	err := enc.Encode(envelope{
		TestName:      meta.Name,
		TestType:      meta.Type,
		TestResult:    meta.Result,
		ExecutionTime: meta.ExecutionTime,
		TestData:      meta.TestData,
		IPFSFile:      file,
		Timestamp:     now.UTC().Format(timestampLayout),
	})
	if err != nil {
		return "", fmt.Errorf("encoding envelope: %w", err)
	}

	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// ParsedEnvelope is a decoded stored payload. Fields are empty when the
// writer did not provide them; unknown keys are kept in Extra.
type ParsedEnvelope struct {
	TestName      string               `mapstructure:"testName" json:"testName,omitempty"`
	TestType      string               `mapstructure:"testType" json:"testType,omitempty"`
	TestResult    string               `mapstructure:"testResult" json:"testResult,omitempty"`
	ExecutionTime string               `mapstructure:"executionTime" json:"executionTime,omitempty"`
	TestData      string               `mapstructure:"testData" json:"testData,omitempty"`
	IPFSFile      *ipfs.FileDescriptor `mapstructure:"ipfsFile" json:"ipfsFile,omitempty"`
	Timestamp     string               `mapstructure:"timestamp" json:"timestamp,omitempty"`
	Extra         map[string]any       `mapstructure:",remain" json:"extra,omitempty"`
}

// ParseEnvelope decodes a stored payload leniently: numbers are accepted
// where strings are expected, and payloads written by other clients
// decode with whatever fields they share.
func ParseEnvelope(data string) (*ParsedEnvelope, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}

	if raw == nil {
		return nil, ErrMalformedEnvelope
	}

	var out ParsedEnvelope

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}

	if out.IPFSFile != nil && out.IPFSFile.CID == "" {
		out.IPFSFile = nil
	}

	return &out, nil
}
