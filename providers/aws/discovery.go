package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	log "github.com/sirupsen/logrus"
)

// Discovery finds backend servers among running EC2 instances carrying a tag
type Discovery struct {
	ec2Client ec2.DescribeInstancesAPIClient
	tagKey    string
	tagValue  string
	port      int
}

// NewDiscovery creates a discovery client for region. tag is "key=value".
func NewDiscovery(ctx context.Context, region, tag string, port int) (*Discovery, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newDiscovery(ec2.NewFromConfig(cfg), tag, port)
}

func newDiscovery(client ec2.DescribeInstancesAPIClient, tag string, port int) (*Discovery, error) {
	key, value, ok := strings.Cut(tag, "=")
	if !ok || key == "" {
		return nil, fmt.Errorf("discovery tag %q must be key=value", tag)
	}
	return &Discovery{
		ec2Client: client,
		tagKey:    key,
		tagValue:  value,
		port:      port,
	}, nil
}

// DiscoverURLs returns the base URL of every running tagged instance
func (d *Discovery) DiscoverURLs(ctx context.Context) ([]string, error) {
	input := &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			{Name: aws.String("tag:" + d.tagKey), Values: []string{d.tagValue}},
			{Name: aws.String("instance-state-name"), Values: []string{"running"}},
		},
	}

	var urls []string
	paginator := ec2.NewDescribeInstancesPaginator(d.ec2Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe instances: %w", err)
		}
		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				ip := aws.ToString(instance.PrivateIpAddress)
				if ip == "" {
					continue
				}
				urls = append(urls, fmt.Sprintf("http://%s:%d", ip, d.port))
			}
		}
	}
	return urls, nil
}

// URLs returns a source yielding static followed by discovered URLs.
// Discovery errors are logged and the static list is used alone.
func (d *Discovery) URLs(static []string) func(ctx context.Context) []string {
	return func(ctx context.Context) []string {
		discovered, err := d.DiscoverURLs(ctx)
		if err != nil {
			log.WithFields(log.Fields{"tag": d.tagKey + "=" + d.tagValue}).Warnf("EC2 discovery failed: %v", err)
			return static
		}
		return MergeURLs(static, discovered)
	}
}

// MergeURLs concatenates lists, keeping the first occurrence of each URL
func MergeURLs(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, u := range list {
			if seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}
