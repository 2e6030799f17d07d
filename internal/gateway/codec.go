package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"

	"etf-mm-bot/internal/config"
	"etf-mm-bot/internal/strategy"

	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"
)

// Codec converts between gateway frames and strategy events/commands.
type Codec interface {
	DecodeEvent(data []byte) (strategy.Event, error)
	EncodeCommand(cmd strategy.Command) ([]byte, error)
	MessageType() websocket.MessageType
}

func NewCodec(name string) (Codec, error) {
	switch name {
	case "", config.CodecJSON:
		return JSONCodec{}, nil
	case config.CodecMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported codec %q", name)
	}
}

type JSONCodec struct{}

func (JSONCodec) DecodeEvent(data []byte) (strategy.Event, error) {
	var w EventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return w.Event()
}

func (JSONCodec) EncodeCommand(cmd strategy.Command) ([]byte, error) {
	w, err := CommandToWire(cmd)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func (JSONCodec) MessageType() websocket.MessageType {
	return websocket.MessageText
}

type MsgpackCodec struct{}

func (MsgpackCodec) DecodeEvent(data []byte) (strategy.Event, error) {
	var w EventWire
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return w.Event()
}

// EncodeCommand writes a map with a fixed key order so identical commands
// always produce identical frames.
func (MsgpackCodec) EncodeCommand(cmd strategy.Command) ([]byte, error) {
	w, err := CommandToWire(cmd)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	mapLen := 2
	if w.Side != "" {
		mapLen += 3
	}
	if w.Lifespan != "" {
		mapLen++
	}
	if err := enc.EncodeMapLen(mapLen); err != nil {
		return nil, err
	}
	if err := encodeString(enc, "type", w.Type); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("order_id"); err != nil {
		return nil, err
	}
	if err := enc.EncodeUint(w.OrderID); err != nil {
		return nil, err
	}
	if w.Side != "" {
		if err := encodeString(enc, "side", w.Side); err != nil {
			return nil, err
		}
		if err := encodeInt(enc, "price", w.Price); err != nil {
			return nil, err
		}
		if err := encodeInt(enc, "volume", w.Volume); err != nil {
			return nil, err
		}
	}
	if w.Lifespan != "" {
		if err := encodeString(enc, "lifespan", w.Lifespan); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) MessageType() websocket.MessageType {
	return websocket.MessageBinary
}

func encodeString(enc *msgpack.Encoder, key, value string) error {
	if err := enc.EncodeString(key); err != nil {
		return err
	}
	return enc.EncodeString(value)
}

func encodeInt(enc *msgpack.Encoder, key string, value int64) error {
	if err := enc.EncodeString(key); err != nil {
		return err
	}
	return enc.EncodeInt(value)
}
