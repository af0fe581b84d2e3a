package ipfs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ethpandaops/testledger/pkg/config"
	"github.com/sirupsen/logrus"
)

type kuboPinner struct {
	log      logrus.FieldLogger
	apiURL   string
	gateways *Gateways
	client   *http.Client
}

var _ Pinner = (*kuboPinner)(nil)

// NewKuboPinner creates a pinner that adds files through a Kubo node's
// RPC API.
func NewKuboPinner(log logrus.FieldLogger, cfg config.KuboConfig, gateways *Gateways) Pinner {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = config.DefaultKuboAPIURL
	}

	return &kuboPinner{
		log:      log.WithField("component", "kubo"),
		apiURL:   strings.TrimRight(apiURL, "/"),
		gateways: gateways,
		client:   &http.Client{Timeout: 10 * time.Minute},
	}
}

func (p *kuboPinner) Name() string {
	return config.PinnerKubo
}

// Pin implements Pinner.
func (p *kuboPinner) Pin(ctx context.Context, file File) (FileDescriptor, error) {
	p.log.WithField("file", file.Name).Info("Adding file to IPFS")

	resp, err := postMultipart(ctx, p.client, p.apiURL+"/api/v0/add?pin=true&cid-version=0", nil, file)
	if err != nil {
		return FileDescriptor{}, uploadError("kubo", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// The add endpoint streams one JSON object per added entry; the last
	// hash is the root.
	var cid string

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var entry struct {
			Hash string `json:"Hash"`
		}

		if err := json.Unmarshal(scanner.Bytes(), &entry); err == nil && entry.Hash != "" {
			cid = entry.Hash
		}
	}

	if err := scanner.Err(); err != nil {
		return FileDescriptor{}, uploadError("kubo", err)
	}

	if cid == "" {
		return FileDescriptor{}, uploadError("kubo", errors.New("add returned empty hash"))
	}

	p.log.WithFields(logrus.Fields{"cid": cid, "file": file.Name}).Info("File added to IPFS")

	return FileDescriptor{
		CID:  cid,
		Name: file.Name,
		Size: file.Size,
		URL:  p.gateways.Default(cid),
	}, nil
}
