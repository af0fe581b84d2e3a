package ipfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ethpandaops/testledger/pkg/config"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// filebaseCIDKey is the object metadata key holding the IPFS CID.
const filebaseCIDKey = "cid"

type filebasePinner struct {
	log      logrus.FieldLogger
	cfg      config.FilebaseConfig
	gateways *Gateways
	client   *s3.Client
}

var _ Pinner = (*filebasePinner)(nil)

// NewFilebasePinner creates a pinner backed by an IPFS bucket on an
// S3-compatible pinning service such as Filebase. The bucket pins every
// object it stores and reports the CID in the object metadata.
func NewFilebasePinner(
	log logrus.FieldLogger,
	cfg config.FilebaseConfig,
	gateways *Gateways,
) (Pinner, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("filebase bucket is required")
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.Region != "" {
				o.Region = cfg.Region
			} else {
				o.Region = "us-east-1"
			}

			if cfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			}

			o.UsePathStyle = true

			if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretAccessKey, "",
				)
			}
		},
	}

	return &filebasePinner{
		log:      log.WithField("component", "filebase"),
		cfg:      cfg,
		gateways: gateways,
		client:   s3.New(s3.Options{}, opts...),
	}, nil
}

func (p *filebasePinner) Name() string {
	return config.PinnerFilebase
}

// objectKey namespaces uploads so identically named files do not collide.
func objectKey(name string) string {
	return time.Now().UTC().Format("2006/01/02") + "/" + uuid.NewString() + "/" + path.Base(name)
}

// Pin implements Pinner.
func (p *filebasePinner) Pin(ctx context.Context, file File) (FileDescriptor, error) {
	if _, err := file.Body.Seek(0, io.SeekStart); err != nil {
		return FileDescriptor{}, uploadError("filebase", fmt.Errorf("rewinding file: %w", err))
	}

	key := objectKey(file.Name)
	log := p.log.WithFields(logrus.Fields{
		"bucket": p.cfg.Bucket,
		"key":    key,
	})

	log.Info("Uploading file to IPFS bucket")

	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.cfg.Bucket),
		Key:           aws.String(key),
		Body:          file.Body,
		ContentLength: aws.Int64(file.Size),
		ContentType:   aws.String(detectContentType(file.Name)),
	})
	if err != nil {
		log.WithError(err).Error("PutObject failed")

		return FileDescriptor{}, uploadError("filebase", fmt.Errorf("PutObject: %w", err))
	}

	head, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return FileDescriptor{}, uploadError("filebase", fmt.Errorf("HeadObject: %w", err))
	}

	cid := head.Metadata[filebaseCIDKey]
	if cid == "" {
		return FileDescriptor{}, uploadError("filebase", errors.New("object metadata has no cid"))
	}

	log.WithField("cid", cid).Info("File uploaded to IPFS bucket")

	return FileDescriptor{
		CID:  cid,
		Name: file.Name,
		Size: file.Size,
		URL:  p.gateways.Default(cid),
	}, nil
}
