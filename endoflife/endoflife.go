package endoflife

import (
	"encoding/json"
	"fmt"
	"log"

	"golang.org/x/xerrors"

	"github.com/flyingphish/intune-os-checker/utils"
)

const (
	defaultBaseURL = "https://endoflife.date/api"
	retry          = 3
)

type option func(*Client)

func WithBaseURL(v string) option {
	return func(c *Client) { c.baseURL = v }
}

func WithRetry(v int) option {
	return func(c *Client) { c.retry = v }
}

// Client fetches OS release catalogs from the endoflife.date API.
type Client struct {
	baseURL string
	retry   int
}

func NewClient(opts ...option) Client {
	client := Client{
		baseURL: utils.LookupEnv("ENDOFLIFE_BASE_URL", defaultBaseURL),
		retry:   retry,
	}
	for _, opt := range opts {
		opt(&client)
	}
	return client
}

// FetchReleases returns the raw release list for one product, e.g. "windows".
func (c Client) FetchReleases(product string) ([]Release, error) {
	url := fmt.Sprintf("%s/%s.json", c.baseURL, product)
	log.Printf("Fetching OS release data from %s", url)

	body, err := utils.FetchURL(url, "", c.retry)
	if err != nil {
		return nil, xerrors.Errorf("failed to fetch %s releases: %w", product, err)
	}

	var releases []Release
	if err := json.Unmarshal(body, &releases); err != nil {
		return nil, xerrors.Errorf("unable to parse %s JSON: %w", product, err)
	}
	return releases, nil
}
