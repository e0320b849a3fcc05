// Package server exposes the engine to the browser UI over HTTP. Every
// mutating route is a POST (or PATCH for single-note edits) carrying a
// small JSON body; responses echo the engine status so the UI can settle
// without a follow-up poll.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	pianoroll "github.com/hi-ogawa/pianoroll-go"
	intaudio "github.com/hi-ogawa/pianoroll-go/internal/audio"
	intscore "github.com/hi-ogawa/pianoroll-go/internal/score"
	inttrack "github.com/hi-ogawa/pianoroll-go/internal/track"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// rescheduleDelay collapses bursts of note edits (a drag arrives as many
// PATCHes) into a single queue rebuild.
const rescheduleDelay = 80 * time.Millisecond

const defaultWaveformBuckets = 512

const shutdownGrace = 5 * time.Second

type Server struct {
	engine     *pianoroll.Engine
	logger     *zap.Logger
	reschedule func(f func())
}

func New(engine *pianoroll.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:     engine,
		logger:     logger,
		reschedule: debounce.New(rescheduleDelay),
	}
}

// Handler builds the route table. CORS is wide open: the UI is served
// from its own dev origin.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter().StrictSlash(true)
	r.HandleFunc("/state", s.handleState).Methods("GET")
	r.HandleFunc("/synth", s.handleSynthState).Methods("GET")
	r.HandleFunc("/synth/program", s.handleProgram).Methods("POST")
	r.HandleFunc("/transport/play", s.handlePlay).Methods("POST")
	r.HandleFunc("/transport/pause", s.handlePause).Methods("POST")
	r.HandleFunc("/transport/stop", s.handleStop).Methods("POST")
	r.HandleFunc("/transport/seek", s.handleSeek).Methods("POST")
	r.HandleFunc("/transport/offset", s.handleOffset).Methods("POST")
	r.HandleFunc("/transport/tempo", s.handleTempo).Methods("POST")
	r.HandleFunc("/transport/metronome", s.handleMetronome).Methods("POST")
	r.HandleFunc("/mixer/volume", s.handleVolume).Methods("POST")
	r.HandleFunc("/notes", s.handleListNotes).Methods("GET")
	r.HandleFunc("/notes", s.handleAddNote).Methods("POST")
	r.HandleFunc("/notes/delete", s.handleDeleteNotes).Methods("POST")
	r.HandleFunc("/notes/select", s.handleSelect).Methods("POST")
	r.HandleFunc("/notes/deselect", s.handleDeselect).Methods("POST")
	r.HandleFunc("/notes/preview", s.handlePreview).Methods("POST")
	r.HandleFunc("/notes/{id}", s.handleUpdateNote).Methods("PATCH")
	r.HandleFunc("/waveform", s.handleWaveform).Methods("GET")
	r.HandleFunc("/project/load", s.handleLoadProject).Methods("POST")
	r.HandleFunc("/project/save", s.handleSaveProject).Methods("POST")
	r.HandleFunc("/audio", s.handleLoadAudio).Methods("POST")
	r.HandleFunc("/soundfont", s.handleLoadSoundFont).Methods("POST")
	r.Use(s.logRequests)
	return cors.AllowAll().Handler(r)
}

// Run serves until ctx is canceled, then drains in-flight requests for a
// short grace period.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("id", uuid.New().String()),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// notesChanged nudges the transport to rebuild its queue from the store.
// Debounced; a no-op while the transport is stopped.
func (s *Server) notesChanged() {
	s.reschedule(s.engine.Reschedule)
}

func (s *Server) respond(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	s.respond(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

type secondsRequest struct {
	Seconds float64 `json:"seconds"`
}

type tempoRequest struct {
	BPM float64 `json:"bpm"`
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

type volumeRequest struct {
	Channel string  `json:"channel"`
	Volume  float64 `json:"volume"`
}

type programRequest struct {
	Program uint8 `json:"program"`
	Channel uint8 `json:"channel"`
}

type idsRequest struct {
	IDs       []string `json:"ids"`
	Exclusive bool     `json:"exclusive"`
}

type previewRequest struct {
	Pitch    uint8 `json:"pitch"`
	Velocity uint8 `json:"velocity"`
}

type pathRequest struct {
	Path string `json:"path"`
}

type notesResponse struct {
	Notes    []intscore.Note `json:"notes"`
	Selected []string        `json:"selected"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleSynthState(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.SynthState()
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.respond(w, http.StatusOK, st)
}

func (s *Server) handleProgram(w http.ResponseWriter, r *http.Request) {
	var req programRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	s.engine.ProgramChange(req.Program, req.Channel)
	s.respond(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Play(); err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respond(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.engine.Pause()
	s.respond(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.engine.Stop()
	s.respond(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req secondsRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	s.engine.Seek(req.Seconds)
	s.respond(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleOffset(w http.ResponseWriter, r *http.Request) {
	var req secondsRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	s.engine.SetOffset(req.Seconds)
	s.respond(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleTempo(w http.ResponseWriter, r *http.Request) {
	var req tempoRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.SetTempo(req.BPM); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	// Queued events keep their old sample times; rebuild so the audible
	// schedule follows the new tempo.
	s.engine.Reschedule()
	s.respond(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleMetronome(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	s.engine.SetMetronome(req.Enabled)
	s.respond(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	channel, err := intaudio.ParseChannel(req.Channel)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	s.engine.SetVolume(channel, req.Volume)
	s.respond(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, notesResponse{
		Notes:    s.engine.Notes(),
		Selected: s.engine.SelectedNoteIDs(),
	})
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	var note intscore.Note
	if err := decodeBody(r, &note); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	added := s.engine.AddNote(note)
	s.notesChanged()
	s.respond(w, http.StatusCreated, added)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var patch intscore.Patch
	if err := decodeBody(r, &patch); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	note, ok := s.engine.UpdateNote(id, patch)
	if !ok {
		s.respondError(w, http.StatusNotFound, errors.New("unknown note id: "+id))
		return
	}
	s.notesChanged()
	s.respond(w, http.StatusOK, note)
}

func (s *Server) handleDeleteNotes(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	deleted := s.engine.DeleteNotes(req.IDs)
	s.notesChanged()
	s.respond(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	selected := s.engine.SelectNotes(req.IDs, req.Exclusive)
	s.respond(w, http.StatusOK, map[string][]string{"selected": selected})
}

func (s *Server) handleDeselect(w http.ResponseWriter, r *http.Request) {
	s.engine.DeselectNotes()
	s.respond(w, http.StatusOK, map[string][]string{"selected": {}})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Velocity == 0 {
		req.Velocity = 100
	}
	s.engine.PreviewNote(req.Pitch, req.Velocity)
	s.respond(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleWaveform(w http.ResponseWriter, r *http.Request) {
	buckets := defaultWaveformBuckets
	if v := r.URL.Query().Get("buckets"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, errors.New("buckets must be a positive integer"))
			return
		}
		buckets = n
	}
	peaks := s.engine.WaveformPeaks(buckets)
	if peaks == nil {
		peaks = []inttrack.Peak{}
	}
	s.respond(w, http.StatusOK, peaks)
}

func (s *Server) handleLoadProject(w http.ResponseWriter, r *http.Request) {
	path, ok := s.decodePath(w, r)
	if !ok {
		return
	}
	if err := s.engine.LoadProject(path); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	s.respond(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleSaveProject(w http.ResponseWriter, r *http.Request) {
	path, ok := s.decodePath(w, r)
	if !ok {
		return
	}
	if err := s.engine.SaveProject(path); err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respond(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleLoadAudio(w http.ResponseWriter, r *http.Request) {
	path, ok := s.decodePath(w, r)
	if !ok {
		return
	}
	if err := s.engine.LoadAudio(path); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	s.respond(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleLoadSoundFont(w http.ResponseWriter, r *http.Request) {
	path, ok := s.decodePath(w, r)
	if !ok {
		return
	}
	if err := s.engine.LoadSoundFont(path); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	s.respond(w, http.StatusOK, s.engine.Status())
}

func (s *Server) decodePath(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req pathRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return "", false
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, errors.New("path is required"))
		return "", false
	}
	return req.Path, true
}
