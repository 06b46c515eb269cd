// Package handlers: REST-обработчики auth-сервиса поверх service.Service.
// Обработчики разбирают JSON, вызывают сервис и пишут ответ; ошибки уходят
// через apierrors.WriteError.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pribylovaa/storefront-auth/internal/service"
	"github.com/pribylovaa/storefront-auth/internal/transport/http/apierrors"
)

// maxBodyBytes: предел размера тела запроса.
const maxBodyBytes = 1 << 20

// Handlers агрегирует зависимости обработчиков.
type Handlers struct {
	svc *service.Service
}

func New(svc *service.Service) *Handlers {
	return &Handlers{svc: svc}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict разбирает тело в value: неизвестные поля и хвост после объекта запрещены.
// Пустое тело допустимо только при allowEmpty.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", apierrors.ErrBadRequest, err)
	}

	if dec.More() {
		return apierrors.ErrBadRequest
	}

	return nil
}
