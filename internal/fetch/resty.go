package fetch

import (
	"context"
	"time"

	"deckharvest/internal/components/assert"
	"deckharvest/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Options struct {
	// defaults to 30 seconds
	Timeout   time.Duration
	UserAgent string
	// 0 disables rate limiting
	RequestsPerSecond float64
	CloudflareBypass  bool
}

// RestyFetcher fetches pages with a resty client. It never retries.
type RestyFetcher struct {
	http *resty.Client
}

func NewRestyFetcher(opts Options, tel telemetry.API) RestyFetcher {
	assert.NotNil(tel)

	httpClient := resty.New()
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	httpClient.SetHeader("user-agent", userAgent)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Second * 30
	}
	httpClient.SetTimeout(timeout)
	httpClient.SetRetryCount(0)

	if opts.RequestsPerSecond > 0 {
		// max burst of 1 keeps requests evenly spaced
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, telemetry.NewScopedAPI("http", tel))

	return RestyFetcher{http: httpClient}
}

func (f RestyFetcher) Fetch(ctx context.Context, url string) (string, error) {
	res, err := f.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return "", &NetworkError{Url: url, Err: err}
	}
	if !res.IsSuccess() {
		return "", &NetworkError{Url: url, StatusCode: res.StatusCode()}
	}
	return res.String(), nil
}
