package gestixsync

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"bitbucket.org/grafimark/shopfloor_backend/config"
	"github.com/sirupsen/logrus"
)

// fetchDelta lists every Gestix order with invoice number strictly
// greater than the watermark and pulls the detail lines for each.
// A failed detail fetch degrades that order to a single header-derived
// line; a failure on the header list itself aborts the cycle.
func fetchDelta(ctx context.Context, client *gestixClient, watermark int) ([]rawOrder, error) {
	logger := config.GetLogger()

	params := url.Values{}
	params.Set("invoice_gt", strconv.Itoa(watermark))
	resp, err := client.getList(ctx, "/v1/orders", params)
	if err != nil {
		// A failed header list aborts the cycle: without headers there
		// is nothing to import.
		return nil, err
	}

	orders := make([]rawOrder, 0, len(resp.Data))
	for _, raw := range resp.Data {
		var header gestixOrderHeader
		if err := json.Unmarshal(raw, &header); err != nil {
			config.LogError(logger, "gestixsync", "fetchDelta", "unmarshal header", string(raw), err)
			continue
		}
		if header.InvoiceNumber <= watermark {
			continue
		}

		lines, err := fetchOrderLines(ctx, client, header)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"invoice": header.InvoiceNumber,
				"doc":     header.DocNumber,
			}).Warn("gestix detail fetch failed; importing header only")
			lines = []gestixOrderLine{headerOnlyLine(header)}
		}
		orders = append(orders, rawOrder{Header: header, Lines: lines})
	}
	return orders, nil
}

func fetchOrderLines(ctx context.Context, client *gestixClient, header gestixOrderHeader) ([]gestixOrderLine, error) {
	ref := header.DocNumber
	if ref == "" {
		ref = strconv.Itoa(header.InvoiceNumber)
	}
	resp, err := client.getList(ctx, "/v1/orders/"+url.PathEscape(ref)+"/lines", nil)
	if err != nil {
		return nil, err
	}
	lines := make([]gestixOrderLine, 0, len(resp.Data))
	for _, raw := range resp.Data {
		var line gestixOrderLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// headerOnlyLine fabricates the degraded single line for an order whose
// detail could not be fetched: no sub-lines and a non-zero total, so it
// aggregates as one extra item under the header's group code.
func headerOnlyLine(header gestixOrderHeader) gestixOrderLine {
	return gestixOrderLine{
		GroupCode:   header.GroupCode,
		Description: header.Description,
		Quantity:    json.Number("1"),
		Total:       json.Number("1"),
	}
}
