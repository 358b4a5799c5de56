package backends

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"scootspot/internal/archive"
	"scootspot/internal/backends/ddb"
	"scootspot/internal/backends/memory"
	"scootspot/internal/detector"
	"scootspot/internal/ports"
	"scootspot/internal/pub"
	"scootspot/internal/types"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	redisbackend "scootspot/internal/backends/redis"
)

const (
	StoreBackendEnvKey = "STORE_BACKEND"
	BackendDDB         = "ddb"
	BackendRedis       = "redis"
	BackendMemory      = "memory"

	DDBEndpointKey  = "DDB_ENDPOINT"
	DDBTableKey     = "DDB_TABLE"
	DefaultDDBTable = "parking_locations"

	ArchiveBackendEnvKey = "ARCHIVE_BACKEND"
	ArchiveS3            = "s3"
	ArchiveLocal         = "local"
	S3BucketKey          = "S3_BUCKET"
	S3EndpointKey        = "S3_ENDPOINT"
	ArchiveDirKey        = "ARCHIVE_DIR"

	DetectorURLKey           = "DETECTOR_URL"
	DetectorLabelsExprKey    = "DETECTOR_LABELS_EXPR"
	DetectorMinConfidenceKey = "DETECTOR_MIN_CONFIDENCE"
	DetectorTimeoutKey       = "DETECTOR_TIMEOUT"
	DefaultDetectorURL       = "http://localhost:5000/count"

	TopicArnKey    = "OCCUPANCY_TOPIC_ARN"
	SNSEndpointKey = "SNS_ENDPOINT"

	RedisHost  = "REDIS_HOST"
	RedisPort  = "REDIS_PORT"
	RedisUser  = "REDIS_USER"
	RedisPass  = "REDIS_PASS"
	RedisTLS   = "REDIS_SSL"
	RedisDBNum = "REDIS_DB_NUM"
)
const AmazonRootCA1PEM = `-----BEGIN CERTIFICATE-----
MIIDQTCCAimgAwIBAgITBmyfz5m/jAo54vB4ikPmljZbyjANBgkqhkiG9w0BAQsF
ADA5MQswCQYDVQQGEwJVUzEPMA0GA1UEChMGQW1hem9uMRkwFwYDVQQDExBBbWF6
b24gUm9vdCBDQSAxMB4XDTE1MDUyNjAwMDAwMFoXDTM4MDExNzAwMDAwMFowOTEL
MAkGA1UEBhMCVVMxDzANBgNVBAoTBkFtYXpvbjEZMBcGA1UEAxMQQW1hem9uIFJv
b3QgQ0EgMTCCASIwDQYJKoZIhvcNAQEBBQADggEPADCCAQoCggEBALJ4gHHKeNXj
ca9HgFB0fW7Y14h29Jlo91ghYPl0hAEvrAIthtOgQ3pOsqTQNroBvo3bSMgHFzZM
9O6II8c+6zf1tRn4SWiw3te5djgdYZ6k/oI2peVKVuRF4fn9tBb6dNqcmzU5L/qw
IFAGbHrQgLKm+a/sRxmPUDgH3KKHOVj4utWp+UhnMJbulHheb4mjUcAwhmahRWa6
VOujw5H5SNz/0egwLX0tdHA114gk957EWW67c4cX8jJGKLhD+rcdqsq08p8kDi1L
93FcXmn/6pUCyziKrlA4b9v7LWIbxcceVOF34GfID5yHI9Y/QCB/IIDEgEw+OyQm
jgSubJrIqg0CAwEAAaNCMEAwDwYDVR0TAQH/BAUwAwEB/zAOBgNVHQ8BAf8EBAMC
AYYwHQYDVR0OBBYEFIQYzIU07LwMlJQuCFmcx7IQTgoIMA0GCSqGSIb3DQEBCwUA
A4IBAQCY8jdaQZChGsV2USggNiMOruYou6r4lK5IpDB/G/wkjUu0yKGX9rbxenDI
U5PMCCjjmCXPI6T53iHTfIUJrU6adTrCC2qJeHZERxhlbI1Bjjt/msv0tadQ1wUs
N+gDS63pYaACbvXy8MWy7Vu33PqUXHeeE6V/Uq2V8viTO96LXFvKWlJbYK8U90vv
o/ufQJVtMVT8QtPHRh8jrdkPSHCa2XV4cdFyQzR1bldZwgJcJmApzyMZFo6IQ6XU
5MsI+yMRQ+hDKXJioaldXgjUkK642M4UwtBV8ob2xJNDd2ZhwLnoQdeXeGADbkpy
rqXRfboQnoZsG4q5WTP468SQvvG5
-----END CERTIFICATE-----`

// LocationBackendFromEnv constructs a LocationStore based on environment variables.
// Supported backends are "ddb" (DynamoDB), "redis" (Redis) and "memory" (process-local).
// It checks the "STORE_BACKEND" env var to determine which backend to use and then reads
// the backend-specific env vars. Default to BackendDDB if unspecified.
func LocationBackendFromEnv(ctx context.Context) (store ports.LocationStore, err error) {
	backend := os.Getenv(StoreBackendEnvKey)
	switch backend {
	case BackendRedis:
		var redisClient *redis.Client
		redisClient, err = redisClientFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		store = redisbackend.NewLocationStore(redisClient)

	case BackendMemory:
		log.Warn("Using in-memory location store; data is lost on restart")
		store = memory.NewLocationStore()

	case BackendDDB, "":
		var ddbClient *dynamodb.Client
		ddbClient, err = ddbClientFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		s := ddb.NewLocationStore(getenv(DDBTableKey, DefaultDDBTable), ddbClient)
		if err = s.EnsureTable(ctx); err != nil {
			return nil, err
		}
		store = s

	default:
		return nil, types.Err(types.ErrInvalidBackend, nil, "%s=%q", StoreBackendEnvKey, backend)
	}
	return
}

// ArchiverFromEnv constructs the blob archiver. It returns (nil, nil) when no archive target
// is configured; ingests that request archiving then fail.
func ArchiverFromEnv(ctx context.Context) (ports.Archiver, error) {
	backend := getenv(ArchiveBackendEnvKey, ArchiveS3)
	switch backend {
	case ArchiveLocal:
		return archive.NewLocalArchiver(getenv(ArchiveDirKey, "./archive")), nil
	case ArchiveS3:
		bucket := os.Getenv(S3BucketKey)
		if bucket == "" {
			log.Warnf("%s not set; archiving disabled", S3BucketKey)
			return nil, nil
		}
		cli, err := s3ClientFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		return archive.NewS3Archiver(bucket, cli), nil
	default:
		return nil, types.Err(types.ErrInvalidBackend, nil, "%s=%q", ArchiveBackendEnvKey, backend)
	}
}

// DetectorFromEnv constructs the inference-server client. By default it talks to the counter
// service's /count endpoint. Setting DETECTOR_MIN_CONFIDENCE switches to a server that returns
// raw detections, and DETECTOR_LABELS_EXPR overrides the expression outright.
func DetectorFromEnv() (*detector.Client, error) {
	expr := detector.CounterCountsExpr
	if v := os.Getenv(DetectorMinConfidenceKey); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return nil, fmt.Errorf("invalid %s %q", DetectorMinConfidenceKey, v)
		}
		expr = detector.DetectionsExpr(f)
	}
	timeout := detector.DefaultTimeout
	if v := os.Getenv(DetectorTimeoutKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", DetectorTimeoutKey, err)
		}
		timeout = d
	}
	return detector.NewClient(
		getenv(DetectorURLKey, DefaultDetectorURL),
		detector.WithLabelsExpr(getenv(DetectorLabelsExprKey, expr)),
		detector.WithTimeout(timeout),
	), nil
}

// PublisherFromEnv returns the SNS publisher and topic, or (nil, "", nil) when no topic is set.
func PublisherFromEnv(ctx context.Context) (ports.Publisher, string, error) {
	arn := os.Getenv(TopicArnKey)
	if arn == "" {
		return nil, "", nil
	}
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, "", err
	}
	endpoint := os.Getenv(SNSEndpointKey)
	cli := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			localOverrides(&o.Region, &o.Credentials)
		}
	})
	return pub.NewSNS(cli), arn, nil
}

// ddbClientFromEnv creates a DynamoDB client from environment variables, if any.
func ddbClientFromEnv(ctx context.Context) (*dynamodb.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := os.Getenv(DDBEndpointKey)
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			// This is used for testing only locally
			o.BaseEndpoint = aws.String(endpoint)
			localOverrides(&o.Region, &o.Credentials)
		}
	}), nil
}

func s3ClientFromEnv(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := os.Getenv(S3EndpointKey)
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
			localOverrides(&o.Region, &o.Credentials)
		}
	}), nil
}

// localOverrides points a client at a local AWS mock with static credentials.
func localOverrides(region *string, creds *aws.CredentialsProvider) {
	*region = getenv("AWS_REGION", "us-east-1")
	*creds = credentials.NewStaticCredentialsProvider(
		getenv("AWS_ACCESS_KEY_ID", "x"),
		getenv("AWS_SECRET_ACCESS_KEY", "x"),
		"",
	)
}

// redisClientFromEnv creates a Redis client from environment variables, if any.
func redisClientFromEnv(ctx context.Context) (*redis.Client, error) {
	host := getenv(RedisHost, "localhost")
	port := getenv(RedisPort, "6379")
	user := os.Getenv(RedisUser)
	pass := os.Getenv(RedisPass)
	tlsEnabled := parseBoolean(getenv(RedisTLS, "false"))
	dbNumStr := getenv(RedisDBNum, "0")
	dbNum, err := strconv.Atoi(dbNumStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis DB number: %w", err)
	}

	var tlsConfig *tls.Config
	if tlsEnabled {
		caCerts := x509.NewCertPool()
		if !caCerts.AppendCertsFromPEM([]byte(AmazonRootCA1PEM)) {
			return nil, fmt.Errorf("failed to retrieve CA certificate")
		}
		tlsConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			RootCAs:    caCerts,
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:      fmt.Sprintf("%s:%s", host, port),
		Username:  user,
		Password:  pass,
		DB:        dbNum,
		TLSConfig: tlsConfig,
	})
	if _, err = redisClient.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return redisClient, nil
}

// getenv retrieves the value of the environment variable named by the key.
func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func parseBoolean(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}
