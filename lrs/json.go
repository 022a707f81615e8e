package lrs

import (
	"encoding/json"
	"errors"
)

// Go's error interface has no canonical JSON representation, so Response
// and MediaRelease get hand-written (Un)MarshalJSON that carry their
// error field as a plain string on the wire and reconstruct a sentinel
// error from it on the way back in.

type responseWire struct {
	ReqID      uint32
	Kind       ReqKind
	RC         int32
	ErrStr     string `json:"err_str,omitempty"`
	WriteAlloc *WriteAllocResp
	ReadAlloc  *ReadAllocResp
}

func (r Response) MarshalJSON() ([]byte, error) {
	w := responseWire{
		ReqID: r.ReqID, Kind: r.Kind, RC: r.RC,
		WriteAlloc: r.WriteAlloc, ReadAlloc: r.ReadAlloc,
	}
	if r.Err != nil {
		w.ErrStr = r.Err.Error()
	}
	return jsonAPI.Marshal(w)
}

func (r *Response) UnmarshalJSON(b []byte) error {
	var w responseWire
	if err := jsonAPI.Unmarshal(b, &w); err != nil {
		return err
	}
	r.ReqID, r.Kind, r.RC = w.ReqID, w.Kind, w.RC
	r.WriteAlloc, r.ReadAlloc = w.WriteAlloc, w.ReadAlloc
	if w.ErrStr != "" {
		r.Err = errors.New(w.ErrStr)
	}
	return nil
}

type mediaReleaseWire struct {
	Medium           json.RawMessage
	SizeWritten      int64
	NbExtentsWritten int64
	Grouping         string
	ToSync           bool
	RCStr            string `json:"rc_str,omitempty"`
}

func (m MediaRelease) MarshalJSON() ([]byte, error) {
	medium, err := jsonAPI.Marshal(m.Medium)
	if err != nil {
		return nil, err
	}
	w := mediaReleaseWire{
		Medium: medium, SizeWritten: m.SizeWritten, NbExtentsWritten: m.NbExtentsWritten,
		Grouping: m.Grouping, ToSync: m.ToSync,
	}
	if m.RC != nil {
		w.RCStr = m.RC.Error()
	}
	return jsonAPI.Marshal(w)
}

func (m *MediaRelease) UnmarshalJSON(b []byte) error {
	var w mediaReleaseWire
	if err := jsonAPI.Unmarshal(b, &w); err != nil {
		return err
	}
	if err := jsonAPI.Unmarshal(w.Medium, &m.Medium); err != nil {
		return err
	}
	m.SizeWritten, m.NbExtentsWritten = w.SizeWritten, w.NbExtentsWritten
	m.Grouping, m.ToSync = w.Grouping, w.ToSync
	if w.RCStr != "" {
		m.RC = errors.New(w.RCStr)
	}
	return nil
}
