package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/apdupes/internal/core"
	"github.com/JonMunkholm/apdupes/internal/detect"
	"github.com/JonMunkholm/apdupes/internal/ledger"
	"github.com/JonMunkholm/apdupes/internal/logging"
)

// multipartMemory is how much of a form is held in memory before parts
// spill to disk.
const multipartMemory = 8 << 20

var (
	errNoFile         = errors.New("no file provided")
	errFileTooLarge   = errors.New("file too large")
	errInvalidForm    = errors.New("invalid form")
	errInvalidMapping = errors.New("invalid mapping format")
	errInvalidOptions = errors.New("invalid options format")
)

// upload is a ledger spooled to a temp file so it outlives the request.
// Close removes the file.
type upload struct {
	*os.File
	name string
	size int64
}

func (u *upload) Close() error {
	err := u.File.Close()
	if rmErr := os.Remove(u.File.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}

// receiveUpload parses the multipart form and spools the "file" part.
func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request) (*upload, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Analysis.MaxFileSize+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, errFileTooLarge
		}
		return nil, http.StatusBadRequest, errInvalidForm
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, http.StatusBadRequest, errNoFile
	}
	defer file.Close()

	if header.Size > s.cfg.Analysis.MaxFileSize {
		return nil, http.StatusRequestEntityTooLarge, errFileTooLarge
	}

	tmp, err := os.CreateTemp("", "apdupes-*.csv")
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	u := &upload{File: tmp, name: header.Filename}

	n, err := io.Copy(tmp, file)
	if err == nil {
		_, err = tmp.Seek(0, io.SeekStart)
	}
	if err != nil {
		u.Close()
		return nil, http.StatusInternalServerError, err
	}
	u.size = n

	return u, http.StatusOK, nil
}

// handleHeaders returns the sanitized header row of an uploaded ledger.
func (s *Server) handleHeaders(w http.ResponseWriter, r *http.Request) {
	u, status, err := s.receiveUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, status)
		return
	}
	defer u.Close()

	var msg core.Message
	s.service.Engine().Handle(r.Context(), core.Request{
		Type: core.RequestParseHeaders,
		File: core.File{Name: u.name, Size: u.size, Reader: u},
	}, func(m core.Message) {
		msg = m
	})

	if msg.Type == core.MessageError {
		s.respondError(w, r, errors.New(msg.Error), http.StatusBadRequest)
		return
	}
	writeJSON(w, msg)
}

// handleStartAnalysis spools the upload and queues an analysis. API
// clients get the ID as JSON; form posts are redirected to the report page.
func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	u, status, err := s.receiveUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, status)
		return
	}

	mapping, err := parseMapping(r)
	if err != nil {
		u.Close()
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	opts, err := s.parseOptions(r)
	if err != nil {
		u.Close()
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	// StartAnalysis owns u from here on
	id, err := s.service.StartAnalysis(withRequestMetadata(r), core.AnalysisInput{
		FileName: u.name,
		Reader:   u,
		Size:     u.size,
		Mapping:  mapping,
		Options:  opts,
	})
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(r.Context()).Info("analysis queued",
		"analysis_id", id,
		"file", u.name,
		"bytes", u.size,
	)

	if !wantsJSON(r) {
		http.Redirect(w, r, "/analyses/"+id, http.StatusSeeOther)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"analysis_id": id})
}

// parseMapping reads the "mapping" JSON field, or the individual form
// fields the HTML form posts.
func parseMapping(r *http.Request) (ledger.ColumnMapping, error) {
	var m ledger.ColumnMapping
	if raw := r.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return m, errInvalidMapping
		}
		return m, nil
	}

	field := func(name string) string {
		return strings.TrimSpace(r.FormValue(name))
	}
	return ledger.ColumnMapping{
		VendorID:         field("vendorId"),
		VendorName:       field("vendorName"),
		InvoiceNumber:    field("invoiceNumber"),
		Amount:           field("amount"),
		InvoiceDate:      field("invoiceDate"),
		PONumber:         field("poNumber"),
		PaymentReference: field("paymentReference"),
		BankAccount:      field("bankAccount"),
	}, nil
}

// parseOptions overlays the request's options on the service defaults.
// It returns nil when the request sets none.
func (s *Server) parseOptions(r *http.Request) (*detect.Options, error) {
	opts := s.service.DefaultOptions()
	set := false

	if raw := r.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			return nil, errInvalidOptions
		}
		set = true
	}

	if v := strings.TrimSpace(r.FormValue("dateWindowDays")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errInvalidOptions
		}
		opts.DateWindowDays = n
		set = true
	}

	if v := strings.TrimSpace(r.FormValue("amountTolerance")); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, errInvalidOptions
		}
		opts.AmountTolerance = d
		set = true
	}

	if !set {
		return nil, nil
	}
	return &opts, nil
}
