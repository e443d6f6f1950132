package stores

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"xbanner/core"
)

// pushTimeout bounds a single fire-and-forget cloud push.
const pushTimeout = 30 * time.Second

// CloudSync is the persistence gateway the handlers talk to. Local writes
// are durable and their failures propagate; after every local mutation the
// full collection is pushed to the remote in the background. Cloud
// failures are logged and swallowed — an explicit sync or app reload is
// the retry path, never an automatic one.
type CloudSync struct {
	local  core.TemplateStore
	remote core.RemoteStore

	configureOnce sync.Once
	configureErr  error

	// wg tracks in-flight background pushes so tests and shutdown can
	// wait them out.
	wg sync.WaitGroup
}

// NewCloudSync wraps a local store with optional remote sync. A nil remote
// disables every cloud code path.
func NewCloudSync(local core.TemplateStore, remote core.RemoteStore) *CloudSync {
	return &CloudSync{local: local, remote: remote}
}

// Local exposes the wrapped local store for read paths.
func (c *CloudSync) Local() core.TemplateStore {
	return c.local
}

func (c *CloudSync) List(ctx context.Context) ([]*core.SavedTemplate, error) {
	return c.local.List(ctx)
}

func (c *CloudSync) Get(ctx context.Context, id string) (*core.SavedTemplate, error) {
	return c.local.Get(ctx, id)
}

// Save writes the template locally and schedules a background cloud push.
// A local failure is returned to the caller; the push never blocks it.
func (c *CloudSync) Save(ctx context.Context, template *core.SavedTemplate) error {
	if err := c.local.Put(ctx, template); err != nil {
		return err
	}
	c.pushAsync()
	return nil
}

// Delete removes the template locally and schedules a background push.
func (c *CloudSync) Delete(ctx context.Context, id string) error {
	if err := c.local.Delete(ctx, id); err != nil {
		return err
	}
	c.pushAsync()
	return nil
}

// Import replaces the whole local collection and schedules a background
// push.
func (c *CloudSync) Import(ctx context.Context, templates []*core.SavedTemplate) error {
	if err := c.local.Replace(ctx, templates); err != nil {
		return err
	}
	c.pushAsync()
	return nil
}

// LoadFromCloud pulls the remote collection, merges it with the local one
// (remote wins on ID collisions, newest 20 kept) and rewrites the local
// store. Returns the merged collection.
func (c *CloudSync) LoadFromCloud(ctx context.Context) ([]*core.SavedTemplate, error) {
	if c.remote == nil {
		return c.local.List(ctx)
	}
	if err := c.ensureConfigured(ctx); err != nil {
		return nil, err
	}

	remote, err := c.remote.Pull(ctx)
	if err != nil {
		return nil, err
	}
	local, err := c.local.List(ctx)
	if err != nil {
		return nil, err
	}
	merged := core.MergeTemplates(remote, local)
	if err := c.local.Replace(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Wait blocks until in-flight background pushes complete.
func (c *CloudSync) Wait() {
	c.wg.Wait()
}

func (c *CloudSync) ensureConfigured(ctx context.Context) error {
	c.configureOnce.Do(func() {
		c.configureErr = c.remote.EnsureConfigured(ctx)
	})
	return c.configureErr
}

// pushAsync snapshots the local collection and pushes it to the remote in
// the background. Fire and forget: failures are logged, never retried.
func (c *CloudSync) pushAsync() {
	if c.remote == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()

		if err := c.ensureConfigured(ctx); err != nil {
			logrus.WithError(err).Warn("Cloud sync not configured, skipping push")
			return
		}
		templates, err := c.local.List(ctx)
		if err != nil {
			logrus.WithError(err).Warn("Cloud push skipped, local list failed")
			return
		}
		if err := c.remote.Push(ctx, templates); err != nil {
			logrus.WithError(err).Warn("Cloud push failed")
			return
		}
		logrus.WithField("count", len(templates)).Debug("Templates pushed to cloud")
	}()
}
