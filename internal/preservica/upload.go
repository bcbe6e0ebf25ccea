package preservica

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"github.com/preservica-tools/preservica-upload/internal/constants"
	"github.com/preservica-tools/preservica-upload/internal/http"
	"github.com/preservica-tools/preservica-upload/internal/remotetree"
)

// ErrNoBucket is returned by UploadBulk when no bucket is configured.
var ErrNoBucket = errors.New("no bulk upload bucket configured")

// ProgressFunc receives the number of newly transferred bytes.
type ProgressFunc func(delta int64)

// gatewayPath is the S3-compatible endpoint exposed by every Preservica server.
const gatewayPath = "/api/s3/buckets"

// UploadBucket returns the gateway bucket used for direct uploads.
func (c *Client) UploadBucket() string {
	return c.cfg.TenantName() + constants.DefaultUploadBucketSuffix
}

// UploadDirect sends a package through the Preservica S3 gateway, which
// starts ingest into folder once the object lands.
func (c *Client) UploadDirect(ctx context.Context, archivePath string, folder remotetree.Folder, progress ProgressFunc, deleteAfter bool) error {
	creds := aws.NewCredentialsCache(tokenCredentials{client: c}, func(o *aws.CredentialsCacheOptions) {
		o.ExpiryWindow = time.Minute
	})

	client := s3.New(s3.Options{
		Region:                     c.region(),
		BaseEndpoint:               aws.String(c.baseURL + gatewayPath),
		UsePathStyle:               true,
		Credentials:                creds,
		HTTPClient:                 c.transfer,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	}, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))

	bucket := c.UploadBucket()
	c.logger.Info().Str("file", archivePath).Str("bucket", bucket).Str("folder", folder.Ref).
		Msg("uploading package through gateway")

	err := c.putObject(ctx, client, bucket, archivePath, folder, progress, func() {
		c.invalidateToken()
		creds.Invalidate()
	})
	if err != nil {
		return err
	}
	c.finishUpload(archivePath, deleteAfter)
	return nil
}

// UploadBulk sends a package to the configured bulk bucket. Packages larger
// than one part are sent as a multipart upload with parallel workers.
func (c *Client) UploadBulk(ctx context.Context, archivePath, bucket string, folder remotetree.Folder, progress ProgressFunc, deleteAfter bool) error {
	if bucket == "" {
		return ErrNoBucket
	}

	client, err := c.bulkClient(ctx)
	if err != nil {
		return err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", archivePath, err)
	}

	c.logger.Info().Str("file", archivePath).Str("bucket", bucket).Str("folder", folder.Ref).
		Int64("size", info.Size()).Msg("uploading package to bulk storage")

	if info.Size() <= c.partSize {
		err = c.putObject(ctx, client, bucket, archivePath, folder, progress, nil)
	} else {
		err = c.multipartUpload(ctx, client, bucket, archivePath, info.Size(), folder, progress)
	}
	if err != nil {
		return err
	}
	c.finishUpload(archivePath, deleteAfter)
	return nil
}

func (c *Client) region() string {
	if c.cfg.S3Region != "" {
		return c.cfg.S3Region
	}
	return constants.DefaultS3Region
}

// bulkClient builds an S3 client from the AWS default configuration chain,
// with static keys and a custom endpoint when configured.
func (c *Client) bulkClient(ctx context.Context) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(c.region()),
		awsconfig.WithHTTPClient(c.transfer),
	}
	if c.cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.cfg.S3AccessKey, c.cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(c.cfg.S3Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		o.APIOptions = append(o.APIOptions, v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware)
	}), nil
}

func objectMetadata(bucket, key string, folder remotetree.Folder, size int64) map[string]string {
	return map[string]string{
		"key":                       key,
		"name":                      key,
		"bucket":                    bucket,
		"status":                    "ready",
		"structuralobjectreference": folder.Ref,
		"size":                      strconv.FormatInt(size, 10),
	}
}

func (c *Client) putObject(ctx context.Context, client *s3.Client, bucket, archivePath string, folder remotetree.Folder, progress ProgressFunc, onCredentialError func()) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", archivePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", archivePath, err)
	}

	key := filepath.Base(archivePath)
	body := newProgressReader(f, progress)

	err = c.retry(ctx, onCredentialError, func() error {
		if _, err := body.Seek(0, io.SeekStart); err != nil {
			return err
		}
		_, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(bucket),
			Key:           aws.String(key),
			Body:          body,
			ContentLength: aws.Int64(info.Size()),
			Metadata:      objectMetadata(bucket, key, folder, info.Size()),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (c *Client) multipartUpload(ctx context.Context, client *s3.Client, bucket, archivePath string, size int64, folder remotetree.Folder, progress ProgressFunc) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", archivePath, err)
	}
	defer f.Close()

	key := filepath.Base(archivePath)

	var create *s3.CreateMultipartUploadOutput
	err = c.retry(ctx, nil, func() error {
		var err error
		create, err = client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
			Bucket:   aws.String(bucket),
			Key:      aws.String(key),
			Metadata: objectMetadata(bucket, key, folder, size),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to start multipart upload: %w", err)
	}
	uploadID := create.UploadId

	numParts := (size + c.partSize - 1) / c.partSize
	parts := make([]types.CompletedPart, numParts)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.BulkUploadWorkers)

	for i := int64(0); i < numParts; i++ {
		partNumber := int32(i + 1)
		offset := i * c.partSize
		length := min(c.partSize, size-offset)

		g.Go(func() error {
			body := newProgressReader(io.NewSectionReader(f, offset, length), progress)

			var etag *string
			err := c.retry(gctx, nil, func() error {
				if _, err := body.Seek(0, io.SeekStart); err != nil {
					return err
				}
				partCtx, cancel := context.WithTimeout(gctx, constants.PartUploadTimeout)
				defer cancel()

				out, err := client.UploadPart(partCtx, &s3.UploadPartInput{
					Bucket:        aws.String(bucket),
					Key:           aws.String(key),
					UploadId:      uploadID,
					PartNumber:    aws.Int32(partNumber),
					Body:          body,
					ContentLength: aws.Int64(length),
				})
				if err != nil {
					return err
				}
				etag = out.ETag
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to upload part %d: %w", partNumber, err)
			}

			parts[partNumber-1] = types.CompletedPart{ETag: etag, PartNumber: aws.Int32(partNumber)}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		c.abortMultipart(client, bucket, key, uploadID)
		return err
	}

	_, err = client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(bucket),
		Key:             aws.String(key),
		UploadId:        uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		c.abortMultipart(client, bucket, key, uploadID)
		return fmt.Errorf("failed to complete multipart upload: %w", err)
	}
	return nil
}

// abortMultipart releases the parts of a failed upload. It runs on its own
// context so it still works after the upload context was cancelled.
func (c *Client) abortMultipart(client *s3.Client, bucket, key string, uploadID *string) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.APIContextTimeout)
	defer cancel()

	_, err := client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: uploadID,
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to abort multipart upload")
	}
}

func (c *Client) retry(ctx context.Context, onCredentialError func(), op func() error) error {
	cfg := http.DefaultConfig()
	cfg.InitialDelay = c.retryDelay
	cfg.OnRetry = func(attempt int, err error, errType http.ErrorType) {
		c.logger.Warn().Err(err).Int("attempt", attempt).Str("error_type", http.ErrorTypeName(errType)).Msg("retrying upload request")
		if errType == http.ErrorTypeCredential && onCredentialError != nil {
			onCredentialError()
		}
	}
	return http.ExecuteWithRetry(ctx, cfg, op)
}

func (c *Client) finishUpload(archivePath string, deleteAfter bool) {
	if !deleteAfter {
		return
	}
	if err := os.Remove(archivePath); err != nil {
		c.logger.Warn().Err(err).Str("file", archivePath).Msg("failed to remove uploaded package")
	}
}

// progressReader reports bytes read past the furthest point reached so far,
// so rewinds for signing or retries never count bytes twice.
type progressReader struct {
	r      io.ReadSeeker
	pos    int64
	high   int64
	report ProgressFunc
}

func newProgressReader(r io.ReadSeeker, report ProgressFunc) *progressReader {
	return &progressReader{r: r, report: report}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.pos += int64(n)
	if p.pos > p.high {
		if p.report != nil {
			p.report(p.pos - p.high)
		}
		p.high = p.pos
	}
	return n, err
}

func (p *progressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.r.Seek(offset, whence)
	if err == nil {
		p.pos = pos
	}
	return pos, err
}
