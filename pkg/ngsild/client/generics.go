package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"slices"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// QueryTemporalEntities pages through every temporal entity that matches the
// parameters, decoding each one into a T before it is passed to callback
func QueryTemporalEntities[T any](ctx context.Context, broker, tenant string, pageSize int, callback func(t T), parameters ...RequestDecoratorFunc) (count int, err error) {

	logger := logging.GetFromContext(ctx)

	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	if pageSize <= 0 {
		pageSize = 50
	}

	offset := 0

	result := make([]T, 0, pageSize)

	for {
		var req *http.Request
		var resp *http.Response
		var respBody []byte

		paging := append(slices.Clone(parameters), Limit(uint64(pageSize)), Offset(uint64(offset)))

		url := fmt.Sprintf("%s/ngsi-ld/v1/temporal/entities%s", broker, urlParams(paging))
		offset += pageSize

		req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			err = fmt.Errorf("failed to create request: %w", err)
			return
		}

		req.Header.Add("Accept", "application/ld+json")
		if tenant != "" && tenant != DefaultTenant {
			req.Header.Add("NGSILD-Tenant", tenant)
		}

		logger.Debug("calling temporal broker", "url", url)

		resp, err = httpClient.Do(req)
		if err != nil {
			err = fmt.Errorf("failed to send request: %w", err)
			return
		}

		respBody, err = io.ReadAll(resp.Body)
		resp.Body.Close()

		if err != nil {
			err = fmt.Errorf("failed to read response body: %w", err)
			return
		}

		if resp.StatusCode >= http.StatusBadRequest {
			reqbytes, _ := httputil.DumpRequest(req, false)
			respbytes, _ := httputil.DumpResponse(resp, false)

			logger.Error("request failed", "request", string(reqbytes), "response", string(respbytes))
			err = checkStatus(resp, respBody)
			return
		}

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
			contentType := resp.Header.Get("Content-Type")
			return count, fmt.Errorf("context source returned status code %d (content-type: %s, body: %s)", resp.StatusCode, contentType, string(respBody))
		}

		err = json.Unmarshal(respBody, &result)
		if err != nil {
			err = fmt.Errorf("failed to unmarshal response: %w", err)
			return
		}

		for _, e := range result {
			callback(e)
		}

		batchSize := len(result)
		count += batchSize

		if batchSize < pageSize {
			break
		}

		// Reset result size before continuing
		result = result[:0]
	}

	return
}
