package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"listou/internal/receipt/models"
)

// infosimplesResponse mirrors the aggregator's envelope. Only the fields the
// pipeline consumes are mapped; everything else is dropped at the boundary.
type infosimplesResponse struct {
	Code        int               `json:"code"`
	CodeMessage string            `json:"code_message"`
	Data        []infosimplesNFCe `json:"data"`
	Errors      []string          `json:"errors"`
}

type infosimplesNFCe struct {
	Emitente struct {
		CNPJ            string `json:"cnpj"`
		NomeRazaoSocial string `json:"nome_razao_social"`
	} `json:"emitente"`
	InformacoesNota struct {
		ChaveAcesso string `json:"chave_acesso"`
		DataEmissao string `json:"data_emissao"`
	} `json:"informacoes_nota"`
	Produtos []struct {
		Nome                 string   `json:"nome"`
		Unidade              string   `json:"unidade"`
		NormQuantidade       float64  `json:"normalizado_quantidade"`
		NormValorUnitario    float64  `json:"normalizado_valor_unitario"`
		NormValorTotalProdut *float64 `json:"normalizado_valor_total_produto"`
	} `json:"produtos"`
	NormValorTotal    float64  `json:"normalizado_valor_total"`
	NormValorDesconto *float64 `json:"normalizado_valor_desconto"`
	NormValorAPagar   *float64 `json:"normalizado_valor_a_pagar"`
}

// HTTPClient queries an InfoSimples-style SEFAZ aggregator over HTTP. It
// enforces its own hard timeout, distinct from any caller deadline, and does
// not retry.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient constructs the aggregator client. timeout is the hard ceiling
// for the single outbound call.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// Fetch issues one GET for the access key and maps the response. Zero results
// return an empty slice with a nil error; callers decide what absence means.
func (c *HTTPClient) Fetch(ctx context.Context, accessKey string) ([]models.RawReceipt, error) {
	reqURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, NewError(ErrorBadData, "invalid aggregator URL", err)
	}
	q := reqURL.Query()
	q.Set("token", c.token)
	q.Set("nfce", accessKey)
	q.Set("ignore_site_receipt", "0")
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, NewError(ErrorUnavailable, "build aggregator request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, NewError(ErrorTimeout, "aggregator call timed out", err)
		}
		return nil, NewError(ErrorUnavailable, "aggregator unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, NewError(ErrorUnavailable, "read aggregator response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewError(ErrorUpstream,
			fmt.Sprintf("aggregator returned HTTP %d", resp.StatusCode), nil)
	}

	var envelope infosimplesResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, NewError(ErrorBadData, "malformed aggregator payload", err)
	}

	// The aggregator wraps consultation failures in a 2xx with its own code.
	if envelope.Code != 200 {
		msg := envelope.CodeMessage
		if msg == "" {
			msg = fmt.Sprintf("consultation failed with code %d", envelope.Code)
		}
		// Code 612 family means "no receipt for this key"; that is absence,
		// not failure.
		if envelope.Code >= 600 && envelope.Code < 620 {
			return nil, nil
		}
		return nil, NewError(ErrorUpstream, msg, nil)
	}

	receipts := make([]models.RawReceipt, 0, len(envelope.Data))
	for _, nota := range envelope.Data {
		receipts = append(receipts, mapNota(nota))
	}
	return receipts, nil
}

func mapNota(nota infosimplesNFCe) models.RawReceipt {
	raw := models.RawReceipt{
		AccessKey: nota.InformacoesNota.ChaveAcesso,
		Issuer: models.RawIssuer{
			Name: nota.Emitente.NomeRazaoSocial,
			CNPJ: nota.Emitente.CNPJ,
		},
		IssueDate: nota.InformacoesNota.DataEmissao,
		Total:     nota.NormValorTotal,
		Discount:  nota.NormValorDesconto,
		Paid:      nota.NormValorAPagar,
	}
	for _, p := range nota.Produtos {
		raw.Lines = append(raw.Lines, models.RawLine{
			Description: p.Nome,
			Quantity:    p.NormQuantidade,
			Unit:        p.Unidade,
			UnitValue:   p.NormValorUnitario,
			LineTotal:   p.NormValorTotalProdut,
		})
	}
	return raw
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
