package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"rps_arena/internal/game"
	"rps_arena/internal/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArchiveConfig points at an S3 compatible bucket (AWS, R2, MinIO).
type ArchiveConfig struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// ObjectPutter is the part of the S3 client the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive wraps a Settler and stores every settled payload as JSON under
// settlements/<match_id>.json. Archive failures are logged, never returned.
type Archive struct {
	next   Settler
	client ObjectPutter
	bucket string
}

func NewArchive(next Settler, client ObjectPutter, bucket string) *Archive {
	return &Archive{next: next, client: client, bucket: bucket}
}

// NewS3Client builds an S3 client from static credentials and an optional custom endpoint.
func NewS3Client(ctx context.Context, cfg ArchiveConfig) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func ObjectKey(matchID string) string {
	return "settlements/" + matchID + ".json"
}

func (a *Archive) Settle(ctx context.Context, p *game.SettlementPayload) error {
	if err := a.next.Settle(ctx, p); err != nil {
		return err
	}

	body, err := json.Marshal(p)
	if err != nil {
		logger.Error("archive marshal failed", "match_id", p.Record.MatchID, "error", err)
		return nil
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(ObjectKey(p.Record.MatchID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		logger.Error("archive upload failed", "match_id", p.Record.MatchID, "error", err)
	}
	return nil
}
