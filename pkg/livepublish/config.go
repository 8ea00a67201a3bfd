package livepublish

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/function61/gokit/jsonfile"
	"github.com/function61/liveedit/pkg/livestore"
	"github.com/function61/liveedit/pkg/livestore/storedriver"
)

const (
	ConfigFilename = "liveedit.json"
)

const (
	TrackerSnapshot = "snapshot"
	TrackerGit      = "git"
)

type Config struct {
	Bucket          string   `json:"bucket"`        // S3 bucket name or "file:///dir"
	BucketRegion    string   `json:"bucket_region"` // defaults to region
	Region          string   `json:"region"`        // where the functions are deployed
	Functions       []string `json:"functions"`     // full Lambda function names
	Ignore          []string `json:"ignore,omitempty"`
	Tracker         string   `json:"tracker,omitempty"` // default snapshot
	AccessKeyId     string   `json:"access_key_id,omitempty"`
	AccessKeySecret string   `json:"access_key_secret,omitempty"`
}

// project root is the directory the config file is in
type Project struct {
	Root string
	Conf Config
}

func ReadProject(configPath string) (*Project, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, err
	}

	conf := Config{}
	if err := jsonfile.Read(absPath, &conf, true); err != nil {
		return nil, fmt.Errorf("liveedit config: %w", err)
	}

	if err := conf.validateAndDefault(); err != nil {
		return nil, fmt.Errorf("liveedit config: %w", err)
	}

	return &Project{
		Root: filepath.Dir(absPath),
		Conf: conf,
	}, nil
}

func (c *Config) validateAndDefault() error {
	if c.BucketRegion == "" {
		c.BucketRegion = c.Region
	}

	if c.Tracker == "" {
		c.Tracker = TrackerSnapshot
	}

	switch {
	case c.Bucket == "":
		return errors.New("bucket not set")
	case c.Region == "":
		return errors.New("region not set")
	case len(c.Functions) == 0:
		return errors.New("no functions configured")
	case c.Tracker != TrackerSnapshot && c.Tracker != TrackerGit:
		return fmt.Errorf("unsupported tracker: %s", c.Tracker)
	default:
		return nil
	}
}

// static keys from config, then from the usual env vars, then the default AWS
// credential chain (shared credentials file, SSO etc.)
func (c *Config) credentials() *storedriver.StaticCredentials {
	if c.AccessKeyId != "" {
		return &storedriver.StaticCredentials{
			AccessKeyId:     c.AccessKeyId,
			AccessKeySecret: c.AccessKeySecret,
		}
	}

	if keyId := os.Getenv("AWS_ACCESS_KEY_ID"); keyId != "" && os.Getenv("AWS_SESSION_TOKEN") == "" {
		return &storedriver.StaticCredentials{
			AccessKeyId:     keyId,
			AccessKeySecret: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		}
	}

	return nil
}

func (c *Config) OpenStore(logger *log.Logger) (livestore.Store, error) {
	return storedriver.Open(c.Bucket, c.BucketRegion, c.credentials(), logger)
}

func (p *Project) Tracker() (ChangeTracker, error) {
	ignore, err := NewIgnoreSet(p.Conf.Ignore)
	if err != nil {
		return nil, err
	}

	switch p.Conf.Tracker {
	case TrackerGit:
		return NewGitTracker(p.Root, ignore), nil
	default:
		return NewSnapshotTracker(p.Root, ignore), nil
	}
}
