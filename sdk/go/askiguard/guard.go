package askiguard

import "context"

// Responder produces an assistant reply for a user prompt.
type Responder func(ctx context.Context, prompt string) (string, error)

// Guard returns a Responder that validates the prompt before calling fn
// and the reply after it. Blocked text never reaches the caller: an
// oversized prompt is answered with the input fallback without calling fn,
// and a blocked reply is replaced by its fallback. Errors from fn are
// returned unchanged.
func (c *Client) Guard(fn Responder, opts ...GuardOption) Responder {
	var gcfg guardConfig
	for _, o := range opts {
		o(&gcfg)
	}

	return func(ctx context.Context, prompt string) (string, error) {
		if in := c.svc.ValidateInput(prompt); in.Blocked {
			return in.Sanitized, nil
		}

		reply, err := fn(ctx, prompt)
		if err != nil {
			return "", err
		}

		var vctx Context
		if gcfg.context != nil {
			vctx = gcfg.context(ctx)
		}
		return c.svc.ValidateOutput(reply, vctx).Sanitized, nil
	}
}
