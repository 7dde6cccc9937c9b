package mainconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	appconfig "github.com/wolfman30/webchat-support-agent/internal/config"
)

func TestLoadAWSConfigStaticCredentials(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{AWSRegion: "us-west-2", AWSAccessKeyID: "AKID", AWSSecretKey: "secret"}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if awsCfg.Region != "us-west-2" {
		t.Fatalf("expected region us-west-2, got %s", awsCfg.Region)
	}
	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve credentials: %v", err)
	}
	if creds.AccessKeyID != "AKID" {
		t.Fatalf("expected static credentials, got %s", creds.AccessKeyID)
	}
	if awsCfg.EndpointResolverWithOptions != nil {
		t.Fatalf("expected no endpoint override")
	}
}

func TestEndpointResolverRoutesLocalServices(t *testing.T) {
	resolver := endpointResolver("http://localhost:4566", "us-east-1")

	for _, service := range []string{sqs.ServiceID, s3.ServiceID} {
		ep, err := resolver.ResolveEndpoint(service, "us-east-1")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", service, err)
		}
		if ep.URL != "http://localhost:4566" {
			t.Fatalf("%s: unexpected url %s", service, ep.URL)
		}
	}

	_, err := resolver.ResolveEndpoint(bedrockruntime.ServiceID, "us-east-1")
	var notFound *aws.EndpointNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected bedrock to use the default resolver, got %v", err)
	}
}
