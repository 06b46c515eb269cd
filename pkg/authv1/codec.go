// Package authv1 описывает внутренний gRPC-контракт auth-сервиса auth.v1.TokenService:
// сообщения, дескриптор сервиса, серверный интерфейс и клиент.
//
// Сообщения передаются в JSON (content-subtype "json"); кодек регистрируется
// в gRPC при импорте пакета. Клиент из NewTokenServiceClient выставляет
// subtype сам, серверу достаточно импортировать пакет.
package authv1

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName: имя кодека и content-subtype сообщений TokenService.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("authv1.jsonCodec.Marshal: %w", err)
	}

	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("authv1.jsonCodec.Unmarshal: %w", err)
	}

	return nil
}

func (jsonCodec) Name() string { return CodecName }
