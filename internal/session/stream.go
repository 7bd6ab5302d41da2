package session

import (
	"context"

	"scanstream/internal/decode"
	"scanstream/internal/recognition"
	"scanstream/internal/scanerr"
)

// ScanStream runs a single-shot session and returns its value as a result
// list. Remote values are returned as the service sent them. Local values
// are looked up with the Identifier unless opts.Offline is set, falling
// back to a list holding only the decoded value.
func (c *Controller) ScanStream(ctx context.Context, opts Options, rec decode.Recognizer) (recognition.ResultList, error) {
	if opts.AutoStop != nil && !*opts.AutoStop {
		return nil, scanerr.Config("scanStream", "continuous scanning is not supported; use Start")
	}

	v, err := c.ScanCode(ctx, opts, rec)
	if err != nil {
		return nil, err
	}
	return c.Resolve(ctx, v, opts)
}

// Resolve turns a session value into a result list the way ScanStream
// does, attaching the anonymous user when opts.CreateAnonymousUser is set.
func (c *Controller) Resolve(ctx context.Context, v Value, opts Options) (recognition.ResultList, error) {
	list := c.resultList(ctx, v, opts.Offline)
	if !opts.CreateAnonymousUser {
		return list, nil
	}
	if c.cfg.Identity == nil {
		return nil, scanerr.Config("scanStream", "createAnonymousUser requires an identity resolver")
	}
	user, err := c.cfg.Identity.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return list.WithUser(user), nil
}

func (c *Controller) resultList(ctx context.Context, v Value, offline bool) recognition.ResultList {
	if v.Remote() {
		return v.Matches
	}
	metaOnly := recognition.MetaOnly(v.Filter.Method, v.Filter.Type, v.Text)
	if offline || c.cfg.Identifier == nil {
		return metaOnly
	}

	list, err := c.cfg.Identifier.Identify(ctx, v.Filter.Type, v.Text)
	if err != nil {
		c.logger.Printf("session: identify %s value failed, returning decoded value only: %v", v.Filter.Type, err)
		return metaOnly
	}
	if len(list) == 0 {
		return metaOnly
	}
	return list
}
