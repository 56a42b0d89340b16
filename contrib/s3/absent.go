// Package s3 adapts bearing's Fetcher interface onto an S3-hosted manifest
// of locally downloaded map regions: the manifest lists the regions a
// device already has, and the fetcher reports whatever a route needs
// beyond that as absent.
package s3

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/go-kratos/bearing"
)

// DefaultManifestKey is the object holding the list of region names the
// device already has maps for.
const DefaultManifestKey = "region-manifest.json"

// Manifest is the decoded shape of the manifest object: the flat list of
// region names ("US_California", "US_Nevada", ...) for which a local map
// file is present.
type Manifest struct {
	Regions []string `json:"regions"`
}

// RegionLookup resolves the geographic regions a Checkpoints sequence
// passes through. It is supplied by the caller because region boundaries
// are map data, outside this module's concern: the fetcher only
// diffs whatever the lookup reports against the manifest.
type RegionLookup func(bearing.Checkpoints) []string

// AbsentRegionFetcher implements bearing.Fetcher by diffing a route's
// regions against an S3-hosted manifest of locally available ones. It is
// a standalone demo of the consumed Fetcher interface, not the
// out-of-scope online absent-countries service itself.
type AbsentRegionFetcher struct {
	client      *s3.Client
	bucket      string
	manifestKey string
	lookup      RegionLookup

	mu      sync.Mutex
	pending chan fetchResult
}

type fetchResult struct {
	checkpoints bearing.Checkpoints
	absent      []string
}

// Option configures an AbsentRegionFetcher.
type Option func(*AbsentRegionFetcher)

// WithManifestKey overrides DefaultManifestKey.
func WithManifestKey(key string) Option {
	return func(f *AbsentRegionFetcher) { f.manifestKey = key }
}

// NewAbsentRegionFetcher constructs a fetcher backed by bucket. For a
// public manifest bucket, build the client with NewAnonymousClient; for a
// private one, pass a client carrying real credentials.
func NewAbsentRegionFetcher(client *s3.Client, bucket string, lookup RegionLookup, opts ...Option) *AbsentRegionFetcher {
	f := &AbsentRegionFetcher{
		client:      client,
		bucket:      bucket,
		manifestKey: DefaultManifestKey,
		lookup:      lookup,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// NewAnonymousClient builds an *s3.Client suitable for a public manifest
// bucket. Explicit anonymous credentials keep the SDK from falling back to
// IAM-role/env-var credential resolution against a bucket that has none.
func NewAnonymousClient(region string) *s3.Client {
	return s3.New(s3.Options{
		Region:      region,
		Credentials: aws.AnonymousCredentials{},
	})
}

// GenerateRequest kicks off a non-blocking fetch of the manifest object;
// GetAbsentCountries blocks on its completion. This overlaps the S3
// round-trip with the engine's local computation, the "absent
// fetcher lifecycle" note.
func (f *AbsentRegionFetcher) GenerateRequest(checkpoints bearing.Checkpoints) {
	result := make(chan fetchResult, 1)

	f.mu.Lock()
	f.pending = result
	f.mu.Unlock()

	go func() {
		absent, err := f.diff(context.Background(), checkpoints)
		if err != nil {
			// Fetcher failures are treated as an empty absent list,
			// never surfaced as an error.
			absent = nil
		}
		result <- fetchResult{checkpoints: checkpoints, absent: absent}
	}()
}

// GetAbsentCountries blocks until the fetch started by GenerateRequest
// completes.
func (f *AbsentRegionFetcher) GetAbsentCountries(ctx context.Context) []string {
	f.mu.Lock()
	result := f.pending
	f.mu.Unlock()
	if result == nil {
		return nil
	}

	select {
	case r := <-result:
		return r.absent
	case <-ctx.Done():
		return nil
	}
}

func (f *AbsentRegionFetcher) diff(ctx context.Context, checkpoints bearing.Checkpoints) ([]string, error) {
	manifest, err := f.fetchManifest(ctx)
	if err != nil {
		return nil, err
	}
	return absentFrom(manifest, f.lookup(checkpoints)), nil
}

// absentFrom returns the regions in needed that manifest does not list, in
// the order needed gives them.
func absentFrom(manifest Manifest, needed []string) []string {
	have := make(map[string]struct{}, len(manifest.Regions))
	for _, r := range manifest.Regions {
		have[r] = struct{}{}
	}

	var absent []string
	for _, region := range needed {
		if _, ok := have[region]; !ok {
			absent = append(absent, region)
		}
	}
	return absent
}

func (f *AbsentRegionFetcher) fetchManifest(ctx context.Context) (Manifest, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.manifestKey),
	})
	if err != nil {
		return Manifest{}, fmt.Errorf("s3: fetching manifest %s/%s: %w", f.bucket, f.manifestKey, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return Manifest{}, fmt.Errorf("s3: reading manifest body: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return Manifest{}, fmt.Errorf("s3: decoding manifest: %w", err)
	}
	return m, nil
}
