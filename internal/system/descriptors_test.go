package system

import (
	core "github.com/solward/flywheel/internal/core"
	"testing"
)

type mockProvider struct{ desc core.Descriptor }

func (m mockProvider) Descriptor() core.Descriptor { return m.desc }

func TestCollectDescriptors(t *testing.T) {
	providers := []DescriptorProvider{
		mockProvider{desc: core.Descriptor{Name: "svc1", Layer: core.LayerEngine}},
		mockProvider{desc: core.Descriptor{Name: "svc2", Layer: core.LayerIngress}},
		mockProvider{desc: core.Descriptor{Name: "svc3", Layer: core.LayerEngine}},
		nil,
	}

	descr := CollectDescriptors(providers)

	if len(descr) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(descr))
	}
	if descr[0].Name != "svc1" || descr[1].Name != "svc3" || descr[2].Name != "svc2" {
		t.Fatalf("unexpected order: %#v", descr)
	}
}
