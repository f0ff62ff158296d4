package job

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/towdesk/backoffice-api/internal/ledger"
)

func newTestRouter(svc *Service) http.Handler {
	handler := NewHandler(svc)
	r := chi.NewRouter()
	r.Route("/jobs", handler.Routes)
	r.Post("/jobs/{jobID}/payments/{paymentID}/refunds", handler.IssueRefund)
	return r
}

func TestHandlerCreateJob(t *testing.T) {
	svc := newService(newStubStore())
	router := newTestRouter(svc)

	body := `{
		"customerName": "Acme Fleet",
		"charges": {
			"items": [{"description": "Hookup", "quantity": 1, "rate": "$75.00"}],
			"taxRate": 8.875,
			"grandTotal": 100
		}
	}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code)

	var envelope struct {
		Data Job `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	require.Equal(t, "Acme Fleet", envelope.Data.CustomerName)
	require.Len(t, envelope.Data.Charges.Items, 2)
	require.Equal(t, 75.0, envelope.Data.Charges.Items[0].Rate, "string rate must be parsed")
	require.Equal(t, 25.0, envelope.Data.Charges.Items[1].Rate, "override difference becomes gratuity")
}

func TestHandlerCreateJobValidation(t *testing.T) {
	svc := newService(newStubStore())
	router := newTestRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"customerName": ""}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerRecordPaymentParsesStringAmount(t *testing.T) {
	svc := newService(newStubStore())
	router := newTestRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs",
		strings.NewReader(`{"customerName": "Acme"}`)))
	require.Equal(t, http.StatusCreated, rr.Code)
	var created struct {
		Data Job `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	body := `{"amount": "$1,250.75", "method": "cash", "note": "paid on site"}`
	rr2 := httptest.NewRecorder()
	router.ServeHTTP(rr2, httptest.NewRequest(http.MethodPost, "/jobs/"+created.Data.ID+"/payments", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr2.Code)

	var payment struct {
		Data ledger.Payment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr2.Body.Bytes(), &payment))
	require.Equal(t, 1250.75, payment.Data.Amount)
	require.Equal(t, ledger.StatusCompleted, payment.Data.Status)
}

func TestHandlerRecordPaymentRejectsUnknownMethod(t *testing.T) {
	svc := newService(newStubStore())
	router := newTestRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs",
		strings.NewReader(`{"customerName": "Acme"}`)))
	var created struct {
		Data Job `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	rr2 := httptest.NewRecorder()
	router.ServeHTTP(rr2, httptest.NewRequest(http.MethodPost, "/jobs/"+created.Data.ID+"/payments",
		strings.NewReader(`{"amount": 10, "method": "check"}`)))
	require.Equal(t, http.StatusBadRequest, rr2.Code)
}

func TestHandlerRefundFlow(t *testing.T) {
	svc := newService(newStubStore())
	router := newTestRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs",
		strings.NewReader(`{"customerName": "Acme"}`)))
	var created struct {
		Data Job `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	rr2 := httptest.NewRecorder()
	router.ServeHTTP(rr2, httptest.NewRequest(http.MethodPost, "/jobs/"+created.Data.ID+"/payments",
		strings.NewReader(`{"amount": 100, "method": "cash"}`)))
	require.Equal(t, http.StatusCreated, rr2.Code)
	var payment struct {
		Data ledger.Payment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr2.Body.Bytes(), &payment))

	rr3 := httptest.NewRecorder()
	router.ServeHTTP(rr3, httptest.NewRequest(http.MethodPost,
		"/jobs/"+created.Data.ID+"/payments/"+payment.Data.ID+"/refunds",
		strings.NewReader(`{"amount": 120}`)))
	require.Equal(t, http.StatusBadRequest, rr3.Code)

	rr4 := httptest.NewRecorder()
	router.ServeHTTP(rr4, httptest.NewRequest(http.MethodPost,
		"/jobs/"+created.Data.ID+"/payments/"+payment.Data.ID+"/refunds",
		strings.NewReader(`{"amount": 60}`)))
	require.Equal(t, http.StatusCreated, rr4.Code)

	rr5 := httptest.NewRecorder()
	router.ServeHTTP(rr5, httptest.NewRequest(http.MethodGet, "/jobs/"+created.Data.ID+"/totals", nil))
	require.Equal(t, http.StatusOK, rr5.Code)
	var totals struct {
		Data JobTotals `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr5.Body.Bytes(), &totals))
	require.Equal(t, 100.0, totals.Data.ChargesTotal)
	require.Equal(t, 60.0, totals.Data.RefundsTotal)
}
