package lrs

import (
	"bytes"

	jsoniter "github.com/json-iterator/go"
	"github.com/tinylib/msgp/msgp"
)

// frame is the on-wire envelope: a msgp-encoded (id, kind) header around a
// JSON payload, deliberately not protobuf. msgp gives a compact,
// self-describing framing header without pulling in a full schema
// compiler for the comparatively rare request/response shapes, while the
// nested payload stays plain JSON for readability in logs and tests.
type frame struct {
	ID      uint32
	Kind    int8
	Payload []byte
}

func encodeFrame(f frame) ([]byte, error) {
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)
	if err := w.WriteMapHeader(3); err != nil {
		return nil, err
	}
	if err := writeKV(w, "id", func() error { return w.WriteUint32(f.ID) }); err != nil {
		return nil, err
	}
	if err := writeKV(w, "kind", func() error { return w.WriteInt8(f.Kind) }); err != nil {
		return nil, err
	}
	if err := writeKV(w, "payload", func() error { return w.WriteBytes(f.Payload) }); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeKV(w *msgp.Writer, key string, val func() error) error {
	if err := w.WriteString(key); err != nil {
		return err
	}
	return val()
}

func decodeFrame(b []byte) (frame, error) {
	r := msgp.NewReader(bytes.NewReader(b))
	n, err := r.ReadMapHeader()
	if err != nil {
		return frame{}, err
	}
	var f frame
	for i := uint32(0); i < n; i++ {
		key, err := r.ReadString()
		if err != nil {
			return frame{}, err
		}
		switch key {
		case "id":
			if f.ID, err = r.ReadUint32(); err != nil {
				return frame{}, err
			}
		case "kind":
			if f.Kind, err = r.ReadInt8(); err != nil {
				return frame{}, err
			}
		case "payload":
			if f.Payload, err = r.ReadBytes(nil); err != nil {
				return frame{}, err
			}
		default:
			if err := r.Skip(); err != nil {
				return frame{}, err
			}
		}
	}
	return f, nil
}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// EncodeRequest serializes a Request to its wire form.
func EncodeRequest(req Request) ([]byte, error) {
	payload, err := jsonAPI.Marshal(req)
	if err != nil {
		return nil, err
	}
	return encodeFrame(frame{ID: req.ID, Kind: int8(req.Kind), Payload: payload})
}

// DecodeRequest parses a wire-form Request.
func DecodeRequest(b []byte) (Request, error) {
	f, err := decodeFrame(b)
	if err != nil {
		return Request{}, err
	}
	var req Request
	if err := jsonAPI.Unmarshal(f.Payload, &req); err != nil {
		return Request{}, err
	}
	return req, nil
}

// EncodeResponse serializes a Response to its wire form.
func EncodeResponse(resp Response) ([]byte, error) {
	payload, err := jsonAPI.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return encodeFrame(frame{ID: resp.ReqID, Kind: int8(resp.Kind), Payload: payload})
}

// DecodeResponse parses a wire-form Response.
func DecodeResponse(b []byte) (Response, error) {
	f, err := decodeFrame(b)
	if err != nil {
		return Response{}, err
	}
	var resp Response
	if err := jsonAPI.Unmarshal(f.Payload, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}
