package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/koopa0/llamagate/internal/filecache"
)

// filesHandler serves document upload and removal.
type filesHandler struct {
	files    *filecache.Store
	maxBytes int64
	logger   *slog.Logger
}

type uploadResponse struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	FileSize int    `json:"file_size"`
}

type fileTypeError struct {
	Error    string `json:"error"`
	FileType string `json:"file_type"`
}

type removeFileResponse struct {
	FileID string `json:"file_id"`
	Result bool   `json:"result"`
}

type fileIDError struct {
	Error  string `json:"error"`
	FileID string `json:"file_id"`
}

// upload handles POST /upload. Accepts one multipart file part, parses it
// to plain text and caches it for the next generation request.
func (h *filesHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "file_too_large", "uploaded file exceeds size limit", h.logger)
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_request", "multipart form with a \"file\" part is required", h.logger)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			h.logger.Debug("closing upload", "error", err)
		}
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "file_too_large", "uploaded file exceeds size limit", h.logger)
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_request", "reading uploaded file failed", h.logger)
		return
	}

	id, err := h.files.Upload(header.Filename, data)
	if err != nil {
		if errors.Is(err, filecache.ErrUnsupportedType) {
			writeJSON(w, http.StatusBadRequest, fileTypeError{
				Error:    "unsupported file type",
				FileType: filecache.Ext(header.Filename),
			}, h.logger)
			return
		}
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		FileID:   id,
		Filename: header.Filename,
		FileSize: len(data),
	}, h.logger)
}

// remove handles DELETE /files/{file_id}.
func (h *filesHandler) remove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("file_id")
	if !h.files.Remove(id) {
		writeJSON(w, http.StatusBadRequest, fileIDError{Error: "file not found", FileID: id}, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, removeFileResponse{FileID: id, Result: true}, h.logger)
}
