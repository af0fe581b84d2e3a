package ipfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethpandaops/testledger/pkg/config"
	"github.com/sirupsen/logrus"
)

type pinataPinner struct {
	log      logrus.FieldLogger
	cfg      config.PinataConfig
	gateways *Gateways
	client   *http.Client
}

var _ Pinner = (*pinataPinner)(nil)

// NewPinataPinner creates a pinner for Pinata's pinFileToIPFS endpoint.
func NewPinataPinner(log logrus.FieldLogger, cfg config.PinataConfig, gateways *Gateways) Pinner {
	if cfg.Endpoint == "" {
		cfg.Endpoint = config.DefaultPinataEndpoint
	}

	return &pinataPinner{
		log:      log.WithField("component", "pinata"),
		cfg:      cfg,
		gateways: gateways,
		client:   &http.Client{Timeout: 10 * time.Minute},
	}
}

func (p *pinataPinner) Name() string {
	return config.PinnerPinata
}

type pinataResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// Pin implements Pinner.
func (p *pinataPinner) Pin(ctx context.Context, file File) (FileDescriptor, error) {
	if p.cfg.JWT == "" {
		return FileDescriptor{}, uploadError("pinata", errors.New("no JWT configured"))
	}

	p.log.WithField("file", file.Name).Info("Uploading file to IPFS")

	metadata, err := json.Marshal(map[string]string{"name": file.Name})
	if err != nil {
		return FileDescriptor{}, uploadError("pinata", err)
	}

	resp, err := postMultipart(ctx, p.client, p.cfg.Endpoint,
		map[string]string{"Authorization": "Bearer " + p.cfg.JWT},
		file,
		formField{name: "pinataMetadata", value: string(metadata)},
		formField{name: "pinataOptions", value: `{"cidVersion":0}`},
	)
	if err != nil {
		p.log.WithError(err).WithField("file", file.Name).Error("Error uploading to IPFS")

		return FileDescriptor{}, uploadError("pinata", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out pinataResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return FileDescriptor{}, uploadError("pinata", fmt.Errorf("decoding response: %w", err))
	}

	if out.IpfsHash == "" {
		return FileDescriptor{}, uploadError("pinata", errors.New("response has no IpfsHash"))
	}

	p.log.WithFields(logrus.Fields{
		"cid":  out.IpfsHash,
		"file": file.Name,
	}).Info("File uploaded to IPFS")

	return FileDescriptor{
		CID:  out.IpfsHash,
		Name: file.Name,
		Size: file.Size,
		URL:  p.gateways.Default(out.IpfsHash),
	}, nil
}
