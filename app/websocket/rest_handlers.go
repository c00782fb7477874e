package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"receiptd/app/database"
	"receiptd/app/escpos"
	"receiptd/app/metrics"
	"receiptd/app/normalize"
	"receiptd/app/services"
)

func detectPrinters() (map[string]interface{}, error) {
	usb, err := escpos.DetectUSBPrinters()
	if err != nil {
		return nil, err
	}
	serial, err := escpos.DetectSerialPorts()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"usb": usb, "serial": serial}, nil
}

func (s *Server) registerRESTRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/orders", s.handleOrders)
	mux.HandleFunc("/api/orders/batch", s.handleOrdersBatch)
	mux.HandleFunc("/api/orders/today", s.handleOrdersToday)
	mux.HandleFunc("/api/orders/", s.handleOrderByNumber)
	mux.HandleFunc("/api/print", s.handlePrint)
	mux.HandleFunc("/api/printers", s.handlePrinters)
}

// handleOrders: POST upserts one payload, GET lists recent rows.
func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var raw map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		source := r.URL.Query().Get("source")
		rec, err := s.store.Save(raw, source)
		if err != nil {
			writeSaveError(w, err)
			return
		}
		metrics.OrdersStored.WithLabelValues(rec.Source).Inc()
		s.broadcastOrder(TypeOrderNew, rec.OrderNumber)
		writeJSON(w, http.StatusOK, rec)

	case http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		recs, err := s.store.ListRecent(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, recs)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleOrdersBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var raws []map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raws); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	saved, failed := s.store.SaveBatch(raws, r.URL.Query().Get("source"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"saved":  saved,
		"failed": failed,
	})
}

func (s *Server) handleOrdersToday(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	recs, err := s.store.ListToday()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleOrderByNumber serves /api/orders/{number}: GET fetches, PATCH
// applies a whitelisted column update.
func (s *Server) handleOrderByNumber(w http.ResponseWriter, r *http.Request) {
	number := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	if number == "" || strings.Contains(number, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := s.store.GetByNumber(number)
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, rec)

	case http.MethodPatch:
		var fields map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		err := s.store.Patch(number, fields)
		switch {
		case errors.Is(err, database.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case err != nil:
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.broadcastOrder(TypeOrderUpdate, number)
			writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
		}

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handlePrint runs a print job for a stored order (by number or id) or for
// an inline payload. The job is synchronous; the response reports the real
// outcome, including the stage that failed.
func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		OrderNumber string                 `json:"order_number"`
		OrderID     uint                   `json:"order_id"`
		Payload     map[string]interface{} `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var err error
	switch {
	case req.OrderNumber != "":
		err = s.printer.PrintOrderNumber(r.Context(), req.OrderNumber)
	case req.OrderID != 0:
		err = s.printer.PrintOrderID(r.Context(), req.OrderID)
	case req.Payload != nil:
		err = s.printer.PrintRaw(r.Context(), req.Payload)
	default:
		writeError(w, http.StatusBadRequest, "order_number, order_id or payload required")
		return
	}

	result := map[string]interface{}{"order_number": req.OrderNumber}
	if err != nil {
		var perr *services.PrintError
		if errors.As(err, &perr) {
			result["stage"] = perr.Stage
		}
		result["error"] = err.Error()
		s.log.Error("print request failed", zap.String("order_number", req.OrderNumber), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, database.ErrNotFound) {
			status = http.StatusNotFound
		}
		var verr *normalize.ValidationError
		if errors.As(err, &verr) {
			status = http.StatusUnprocessableEntity
		}
		s.broadcastResult(req.OrderNumber, false)
		writeJSON(w, status, result)
		return
	}

	result["status"] = "printed"
	s.broadcastResult(req.OrderNumber, true)
	writeJSON(w, http.StatusOK, result)
}

// handlePrinters lists printer devices detected on this host.
func (s *Server) handlePrinters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	printers, err := detectPrinters()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, printers)
}

func (s *Server) broadcastOrder(t MessageType, orderNumber string) {
	data, _ := json.Marshal(map[string]string{"order_number": orderNumber})
	s.Broadcast(Message{Type: t, Data: data})
}

func (s *Server) broadcastResult(orderNumber string, ok bool) {
	data, _ := json.Marshal(map[string]interface{}{
		"order_number": orderNumber,
		"success":      ok,
	})
	s.Broadcast(Message{Type: TypePrintResult, Data: data})
}

func writeSaveError(w http.ResponseWriter, err error) {
	var verr *normalize.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
