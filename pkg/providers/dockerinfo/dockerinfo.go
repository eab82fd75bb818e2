// Package dockerinfo inventories Docker containers and images through
// the daemon API. The fragment is read-only: drift in container state
// is visible in status output but never reconciled.
package dockerinfo

import (
	"context"
	"sort"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"

	"github.com/twinsync/twinsync/pkg/engine"
)

// Name is the provider name and manifest entrypoint.
const Name = "containers.docker"

const fragment = "containers"

func init() {
	engine.Register(Name, func() engine.ConfigProvider { return &Provider{} })
}

// Provider reads the local Docker daemon.
type Provider struct {
	cli *client.Client
}

func (p *Provider) ensureClient() error {
	if p.cli != nil {
		return nil
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return err
	}
	p.cli = cli
	return nil
}

// Detect reports whether a Docker daemon answers on this host.
func (p *Provider) Detect(ctx context.Context, tc *engine.TwinContext) bool {
	if err := p.ensureClient(); err != nil {
		return false
	}
	_, err := p.cli.Ping(ctx)
	return err == nil
}

// DumpState lists all containers (running or not) and images.
func (p *Provider) DumpState(ctx context.Context, tc *engine.TwinContext) (engine.Document, error) {
	if err := p.ensureClient(); err != nil {
		return nil, engine.NewProviderRuntimeError("create docker client", err).
			WithProvider(Name).WithOperation("dump_state")
	}
	containers, err := p.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, engine.NewProviderRuntimeError("list containers", err).
			WithProvider(Name).WithOperation("dump_state")
	}
	images, err := p.cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return nil, engine.NewProviderRuntimeError("list images", err).
			WithProvider(Name).WithOperation("dump_state")
	}

	return engine.Wrap(fragment, map[string]interface{}{
		"backend":    "docker",
		"containers": containerSummaries(containers),
		"images":     imageSummaries(images),
	}), nil
}

// containerSummaries flattens the API listing to name, image, and
// state, sorted by name so successive snapshots compare cleanly.
func containerSummaries(containers []types.Container) []interface{} {
	summaries := make([]interface{}, 0, len(containers))
	for _, c := range containers {
		name := strings.TrimPrefix(c.ID, "sha256:")
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		summaries = append(summaries, map[string]interface{}{
			"name":  name,
			"image": c.Image,
			"state": c.State,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		a := summaries[i].(map[string]interface{})["name"].(string)
		b := summaries[j].(map[string]interface{})["name"].(string)
		return a < b
	})
	return summaries
}

// imageSummaries records short id, tags, and size per image, sorted by
// id.
func imageSummaries(images []image.Summary) []interface{} {
	summaries := make([]interface{}, 0, len(images))
	for _, img := range images {
		id := strings.TrimPrefix(img.ID, "sha256:")
		if len(id) > 12 {
			id = id[:12]
		}
		tags := make([]interface{}, 0, len(img.RepoTags))
		for _, tag := range img.RepoTags {
			tags = append(tags, tag)
		}
		summaries = append(summaries, map[string]interface{}{
			"id":   id,
			"tags": tags,
			"size": int(img.Size),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		a := summaries[i].(map[string]interface{})["id"].(string)
		b := summaries[j].(map[string]interface{})["id"].(string)
		return a < b
	})
	return summaries
}

// Plan contributes a permanently empty entry: the inventory cannot be
// reconciled, only observed.
func (p *Provider) Plan(desired, live engine.Document) (engine.PlanDocument, error) {
	return engine.PlanDocument{Name: []engine.Action{}}, nil
}

// Apply is a no-op for the read-only fragment.
func (p *Provider) Apply(ctx context.Context, actions []engine.Action, tc *engine.TwinContext) ([]engine.ActionResult, error) {
	return []engine.ActionResult{}, nil
}
