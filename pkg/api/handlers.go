package api

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ssargent/tablekv/pkg/metrics"
	"github.com/ssargent/tablekv/pkg/store"
	"github.com/ssargent/tablekv/pkg/wal"
)

const (
	maxValueSize     = 16 << 20
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// Server holds the API server state
type Server struct {
	store   TableStore
	config  ServerConfig
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewServer creates a new API server
func NewServer(store TableStore, config ServerConfig, metrics *metrics.Metrics, log zerolog.Logger) *Server {
	return &Server{
		store:   store,
		config:  config,
		metrics: metrics,
		log:     log,
	}
}

// statusFor maps store errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidName), errors.Is(err, store.ErrKeyOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrTableExists):
		return http.StatusConflict
	case errors.Is(err, store.ErrStoreClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	sendError(w, err.Error(), status)
}

// decodeKey reads a key from a path or query value. With ?encoding=hex the
// value is hex, otherwise it is taken as escaped text.
func decodeKey(r *http.Request, raw string) ([]byte, error) {
	if r.URL.Query().Get("encoding") == "hex" {
		return hex.DecodeString(raw)
	}
	key, err := url.PathUnescape(raw)
	return []byte(key), err
}

func encodeKey(r *http.Request, key []byte) string {
	if r.URL.Query().Get("encoding") == "hex" {
		return hex.EncodeToString(key)
	}
	return string(key)
}

func pageLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultPageLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errors.Newf("invalid limit %q", raw)
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return limit, nil
}

// existingTable resolves {name} without creating it
func (s *Server) existingTable(w http.ResponseWriter, r *http.Request) (*store.Table, bool) {
	name := chi.URLParam(r, "name")
	_, ok, err := s.store.TableID(name)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	if !ok {
		sendError(w, "table not found", http.StatusNotFound)
		return nil, false
	}
	t, err := s.store.OpenTable(name)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return t, true
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	APIResponse
//	@Router			/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleListTables godoc
//
//	@Summary		List tables
//	@Description	Every registered table in ascending id order
//	@Tags			tables
//	@Produce		json
//	@Success		200	{object}	APIResponse{data=[]store.TableInfo}
//	@Security		ApiKeyAuth
//	@Router			/tables [get]
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.store.ListTables()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if tables == nil {
		tables = []store.TableInfo{}
	}
	sendSuccess(w, tables)
}

// handleGetTable godoc
//
//	@Summary		Look up a table
//	@Tags			tables
//	@Produce		json
//	@Param			name	path		string	true	"Table name"
//	@Success		200		{object}	APIResponse{data=store.TableInfo}
//	@Failure		404		{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/tables/{name} [get]
func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	id, ok, err := s.store.TableID(name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		sendError(w, "table not found", http.StatusNotFound)
		return
	}
	sendSuccess(w, store.TableInfo{Name: name, ID: id})
}

// handleCreateTable godoc
//
//	@Summary		Open or create a table
//	@Tags			tables
//	@Produce		json
//	@Param			name	path		string	true	"Table name"
//	@Success		200		{object}	APIResponse{data=store.TableInfo}
//	@Failure		400		{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/tables/{name} [put]
func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	t, err := s.store.OpenTable(name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendSuccess(w, store.TableInfo{Name: name, ID: t.ID()})
}

// handleDropTable godoc
//
//	@Summary		Destroy a table and all of its records
//	@Tags			tables
//	@Produce		json
//	@Param			name	path		string	true	"Table name"
//	@Success		200		{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/tables/{name} [delete]
func (s *Server) handleDropTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.store.DestroyTable(name); err != nil {
		s.fail(w, r, err)
		return
	}
	sendSuccess(w, map[string]string{"status": "dropped", "name": name})
}

// handleRenameTable godoc
//
//	@Summary		Rename a table
//	@Tags			tables
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string			true	"Table name"
//	@Param			body	body		RenameRequest	true	"New name"
//	@Success		200		{object}	APIResponse
//	@Failure		409		{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/tables/{name}/rename [post]
func (s *Server) handleRenameTable(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid JSON in request body", http.StatusBadRequest)
		return
	}
	name := chi.URLParam(r, "name")
	if err := s.store.RenameTable(name, req.NewName); err != nil {
		s.fail(w, r, err)
		return
	}
	sendSuccess(w, map[string]string{"status": "renamed", "from": name, "to": req.NewName})
}

// handlePut godoc
//
//	@Summary		Put a record
//	@Tags			kv
//	@Accept			octet-stream
//	@Produce		json
//	@Param			name		path		string	true	"Table name"
//	@Param			key			path		string	true	"Key"
//	@Param			encoding	query		string	false	"hex for hex-encoded keys"
//	@Param			body		body		[]byte	true	"Value"
//	@Success		200			{object}	APIResponse
//	@Failure		400			{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/tables/{name}/kv/{key} [put]
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key, err := decodeKey(r, chi.URLParam(r, "key"))
	if err != nil {
		sendError(w, "Invalid key encoding", http.StatusBadRequest)
		return
	}
	value, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxValueSize))
	if err != nil {
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	t, err := s.store.OpenTable(chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := t.Put(key, value); err != nil {
		s.fail(w, r, err)
		return
	}
	sendSuccess(w, map[string]string{"status": "ok"})
}

// handleGet godoc
//
//	@Summary		Get a record
//	@Description	Returns the raw value bytes
//	@Tags			kv
//	@Produce		octet-stream
//	@Param			name		path		string	true	"Table name"
//	@Param			key			path		string	true	"Key"
//	@Param			encoding	query		string	false	"hex for hex-encoded keys"
//	@Success		200			{string}	binary
//	@Failure		404			{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/tables/{name}/kv/{key} [get]
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key, err := decodeKey(r, chi.URLParam(r, "key"))
	if err != nil {
		sendError(w, "Invalid key encoding", http.StatusBadRequest)
		return
	}
	t, ok := s.existingTable(w, r)
	if !ok {
		return
	}
	value, err := t.Get(key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(value)
}

// handleDelete godoc
//
//	@Summary		Delete a record
//	@Tags			kv
//	@Produce		json
//	@Param			name		path		string	true	"Table name"
//	@Param			key			path		string	true	"Key"
//	@Param			encoding	query		string	false	"hex for hex-encoded keys"
//	@Success		200			{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/tables/{name}/kv/{key} [delete]
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, err := decodeKey(r, chi.URLParam(r, "key"))
	if err != nil {
		sendError(w, "Invalid key encoding", http.StatusBadRequest)
		return
	}
	t, ok := s.existingTable(w, r)
	if !ok {
		return
	}
	if err := t.Delete(key); err != nil {
		s.fail(w, r, err)
		return
	}
	sendSuccess(w, map[string]string{"status": "deleted"})
}

// handleScan godoc
//
//	@Summary		Scan a table
//	@Description	Records in [start, end) in key order, or reverse order with reverse=true
//	@Tags			kv
//	@Produce		json
//	@Param			name		path		string	true	"Table name"
//	@Param			start		query		string	false	"Inclusive lower bound"
//	@Param			end			query		string	false	"Exclusive upper bound"
//	@Param			limit		query		int		false	"Page size, at most 1000"
//	@Param			reverse		query		bool	false	"Walk backwards from end"
//	@Param			encoding	query		string	false	"hex for hex-encoded keys"
//	@Success		200			{object}	APIResponse{data=ScanResponse}
//	@Security		ApiKeyAuth
//	@Router			/tables/{name}/scan [get]
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()

	limit, err := pageLimit(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var lower, upper []byte
	if raw := q.Get("start"); raw != "" {
		if lower, err = decodeKey(r, raw); err != nil {
			sendError(w, "Invalid start key", http.StatusBadRequest)
			return
		}
	}
	if raw := q.Get("end"); raw != "" {
		if upper, err = decodeKey(r, raw); err != nil {
			sendError(w, "Invalid end key", http.StatusBadRequest)
			return
		}
	}
	reverse := q.Get("reverse") == "true"

	t, ok := s.existingTable(w, r)
	if !ok {
		return
	}
	it, err := t.Iter()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer it.Close()

	inRange := func(key []byte) bool {
		return (lower == nil || bytes.Compare(key, lower) >= 0) &&
			(upper == nil || bytes.Compare(key, upper) < 0)
	}

	var valid bool
	switch {
	case !reverse && lower == nil:
		valid = it.SeekToFirst()
	case !reverse:
		valid = it.Seek(lower)
	case upper == nil:
		valid = it.SeekToLast()
	default:
		valid = it.SeekForPrev(upper)
		if valid && bytes.Equal(it.Key(), upper) {
			valid = it.Prev()
		}
	}

	resp := ScanResponse{Entries: []Entry{}}
	for valid && inRange(it.Key()) {
		if len(resp.Entries) == limit {
			resp.Next = encodeKey(r, it.Key())
			break
		}
		resp.Entries = append(resp.Entries, Entry{
			Key:   encodeKey(r, it.Key()),
			Value: append([]byte(nil), it.Value()...),
		})
		if reverse {
			valid = it.Prev()
		} else {
			valid = it.Next()
		}
	}
	if err := it.Error(); err != nil {
		s.fail(w, r, err)
		return
	}

	s.metrics.RecordTableOperation("scan", true, time.Since(start))
	sendSuccess(w, resp)
}

// handleChanges godoc
//
//	@Summary		Read the change stream
//	@Description	Committed batches starting at sequence number since
//	@Tags			changes
//	@Produce		json
//	@Param			since	query		int	false	"First sequence number of interest"
//	@Param			limit	query		int	false	"Batches per page, at most 1000"
//	@Success		200		{object}	APIResponse{data=ChangesResponse}
//	@Security		ApiKeyAuth
//	@Router			/changes [get]
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			sendError(w, "Invalid since", http.StatusBadRequest)
			return
		}
		since = v
	}
	limit, err := pageLimit(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	stream, err := s.store.Changes(since)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer stream.Close()

	resp := ChangesResponse{Updates: []wal.Updates{}, NextSeq: since}
	for len(resp.Updates) < limit && stream.Next() {
		u := stream.Updates()
		resp.Updates = append(resp.Updates, u)
		resp.NextSeq = u.NextSeq()
	}
	if err := stream.Err(); err != nil {
		s.fail(w, r, err)
		return
	}
	sendSuccess(w, resp)
}
