package lrs

import (
	"context"
	"fmt"

	"github.com/valyala/fasthttp"

	"github.com/cea-hpc/phobos-go/cmn/atomic"
)

// Peer is the abstraction the data path's request/response protocol
// targets: the resource scheduler, modeled here purely as a synchronous
// round trip even though the processor never blocks on it mid-step — the
// processor always suspends and waits for the caller to feed the matching
// Response back through step().
type Peer interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// LoopbackPeer is an in-process Peer used by tests and single-binary
// deployments where the scheduler logic runs in the same process. It
// delegates to a user handler rather than hard-coding allocation policy,
// which is out of this module's scope.
type LoopbackPeer struct {
	Handle func(ctx context.Context, req Request) (Response, error)
}

func (p LoopbackPeer) Send(ctx context.Context, req Request) (Response, error) {
	return p.Handle(ctx, req)
}

// HTTPPeer reaches the LRS over HTTP using fasthttp, mirroring an
// intra-cluster transport choice for the one external collaborator
// treated here as a wire peer.
type HTTPPeer struct {
	Client  *fasthttp.Client
	BaseURL string // e.g. "http://lrs.local:7766/v0"

	inflight atomic.Int64 // requests sent but not yet answered, shared across callers of one HTTPPeer
}

func NewHTTPPeer(baseURL string) *HTTPPeer {
	return &HTTPPeer{Client: &fasthttp.Client{}, BaseURL: baseURL}
}

// Inflight reports the number of requests this peer has sent to the LRS and
// not yet gotten a response (or error) for.
func (p *HTTPPeer) Inflight() int64 { return p.inflight.Load() }

func (p *HTTPPeer) Send(ctx context.Context, req Request) (Response, error) {
	p.inflight.Inc()
	defer p.inflight.Dec()

	body, err := EncodeRequest(req)
	if err != nil {
		return Response{}, err
	}

	httpReq := fasthttp.AcquireRequest()
	httpResp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(httpReq)
	defer fasthttp.ReleaseResponse(httpResp)

	httpReq.Header.SetMethod(fasthttp.MethodPost)
	httpReq.SetRequestURI(p.BaseURL + "/request")
	httpReq.Header.SetContentType("application/msgpack")
	httpReq.SetBody(body)

	if deadline, ok := ctx.Deadline(); ok {
		if err := p.Client.DoDeadline(httpReq, httpResp, deadline); err != nil {
			return Response{}, err
		}
	} else if err := p.Client.Do(httpReq, httpResp); err != nil {
		return Response{}, err
	}

	if httpResp.StatusCode() != fasthttp.StatusOK {
		return Response{}, fmt.Errorf("lrs: unexpected status %d", httpResp.StatusCode())
	}
	return DecodeResponse(httpResp.Body())
}
