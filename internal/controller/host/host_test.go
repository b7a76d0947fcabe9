/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package host_test

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	hostsync "github.com/golgoth31/gateway-autodns/internal/controller/host"
	"github.com/golgoth31/gateway-autodns/internal/dnsprovider"
	"github.com/golgoth31/gateway-autodns/internal/dnsprovider/dnsfake"
	"github.com/golgoth31/gateway-autodns/internal/dnsprovider/route53fake"
	domainhost "github.com/golgoth31/gateway-autodns/internal/domain/host"
	"github.com/golgoth31/gateway-autodns/internal/gateway/gatewayfake"
	"github.com/golgoth31/gateway-autodns/internal/store"
)

var rules = domainhost.Rules{
	ClassPrefix:        "kubesphere-router-namespace-",
	ClassSuffix:        "-namespace",
	HostSuffix:         "-k8s.example.com",
	ExternalHostSuffix: "-nj.example.com",
	Domain:             "example.com",
}

type publicRecorder struct {
	reconciled []string
	removed    []string
	err        error
}

func (p *publicRecorder) ReconcileHost(_ context.Context, h string) error {
	p.reconciled = append(p.reconciled, h)
	return p.err
}

func (p *publicRecorder) RemoveHost(_ context.Context, h string) error {
	p.removed = append(p.removed, h)
	return p.err
}

var _ = Describe("NodeInternalIPs", func() {
	It("should order by node name and drop loopback and non-internal addresses", func() {
		nodes := []corev1.Node{
			{
				ObjectMeta: metav1.ObjectMeta{Name: "worker-2"},
				Status: corev1.NodeStatus{Addresses: []corev1.NodeAddress{
					{Type: corev1.NodeInternalIP, Address: "10.0.0.2"},
					{Type: corev1.NodeHostName, Address: "worker-2"},
				}},
			},
			{
				ObjectMeta: metav1.ObjectMeta{Name: "worker-1"},
				Status: corev1.NodeStatus{Addresses: []corev1.NodeAddress{
					{Type: corev1.NodeInternalIP, Address: "127.0.0.1"},
					{Type: corev1.NodeInternalIP, Address: "fd00::0001"},
					{Type: corev1.NodeExternalIP, Address: "198.51.100.4"},
				}},
			},
			{
				ObjectMeta: metav1.ObjectMeta{Name: "worker-3"},
				Status: corev1.NodeStatus{Addresses: []corev1.NodeAddress{
					{Type: corev1.NodeInternalIP, Address: "::1"},
					{Type: corev1.NodeInternalIP, Address: "garbage"},
				}},
			},
		}

		Expect(hostsync.NodeInternalIPs(nodes)).To(Equal([]string{"fd00::1", "10.0.0.2"}))
	})
})

var _ = Describe("CollectNodeIPsHandler", func() {
	It("should skip the host when nodes cannot be listed", func() {
		c := fake.NewClientBuilder().WithInterceptorFuncs(interceptor.Funcs{
			List: func(context.Context, client.WithWatch, client.ObjectList, ...client.ListOption) error {
				return errors.New("forbidden")
			},
		}).Build()
		rc := hostsync.NewContext("app-k8s.example.com", "kubesphere-router-namespace-demo")

		Expect(hostsync.NewCollectNodeIPsHandler(c).Handle(context.Background(), rc)).To(Succeed())

		stopped, reason := rc.Stopped()
		Expect(stopped).To(BeTrue())
		Expect(reason).To(Equal(hostsync.StopNodesUnlisted))
	})
})

var _ = Describe("ResolveNamesHandler", func() {
	It("should derive the record name, router service and external host", func() {
		rc := hostsync.NewContext("app-k8s.example.com", "kubesphere-router-namespace-demo")

		Expect(hostsync.NewResolveNamesHandler(rules).Handle(context.Background(), rc)).To(Succeed())

		Expect(rc.Resource.RR).To(Equal("app-k8s"))
		Expect(rc.Resource.ServiceName).To(Equal("kubesphere-router-demo"))
		Expect(rc.Resource.ExternalHost).To(Equal("app-nj.example.com"))
	})
})

var _ = Describe("UpsertDNSHandler", func() {
	It("should keep the stored id when every update fails", func() {
		dns := dnsfake.New()
		dns.FailOn = func(dnsfake.Call) error { return errors.New("throttled") }
		rc := hostsync.NewContext("app-k8s.example.com", "kubesphere-router-namespace-demo")
		rc.Resource.RR = "app-k8s"
		rc.Resource.NodeIPs = []string{"10.0.0.3", "10.0.0.4"}
		rc.Resource.Existing = &store.HostRecord{ProviderRecordID: "app-k8s|A|10.0.0.1", RecordType: "A"}

		Expect(hostsync.NewUpsertDNSHandler(dns).Handle(context.Background(), rc)).To(Succeed())

		Expect(dns.Calls()).To(Equal([]dnsfake.Call{
			{Op: "update", ID: "app-k8s|A|10.0.0.1", RR: "app-k8s", Type: "A", Value: "10.0.0.3"},
			{Op: "add", RR: "app-k8s", Type: "A", Value: "10.0.0.4"},
			{Op: "delete", ID: "app-k8s|A|10.0.0.1"},
		}))
		Expect(rc.Resource.DNSFailures).To(Equal(3))
		Expect(rc.Resource.ProviderRecordID).To(Equal("app-k8s|A|10.0.0.1"))
	})

	It("should add fresh records when the stored record has no provider id", func() {
		dns := dnsfake.New()
		rc := hostsync.NewContext("app-k8s.example.com", "kubesphere-router-namespace-demo")
		rc.Resource.RR = "app-k8s"
		rc.Resource.NodeIPs = []string{"fe80::1"}
		rc.Resource.Existing = &store.HostRecord{NodeIPs: []string{"10.0.0.1"}}

		Expect(hostsync.NewUpsertDNSHandler(dns).Handle(context.Background(), rc)).To(Succeed())

		Expect(dns.CallsFor("add")).To(Equal([]dnsfake.Call{{Op: "add", RR: "app-k8s", Type: "AAAA", Value: "fe80::1"}}))
		Expect(rc.Resource.RecordType).To(Equal("AAAA"))
	})
})

var _ = Describe("UpsertDNSHandler on a Route53 zone", func() {
	const zoneName = "app-k8s.example.com."

	var (
		ctx context.Context
		api *route53fake.API
		dns *dnsprovider.Route53
	)

	// upsert runs the handler for an existing host whose set holds stored and
	// whose provider id names storedValue.
	upsert := func(stored []string, storedValue string, nodeIPs ...string) *hostsync.State {
		api.Put(zoneName, types.RRTypeA, stored...)
		rc := hostsync.NewContext("app-k8s.example.com", "kubesphere-router-namespace-demo")
		rc.Resource.RR = "app-k8s"
		rc.Resource.NodeIPs = nodeIPs
		rc.Resource.Existing = &store.HostRecord{
			NodeIPs:          stored,
			ProviderRecordID: dnsprovider.RecordID("app-k8s", "A", storedValue),
			RecordType:       "A",
		}
		Expect(hostsync.NewUpsertDNSHandler(dns).Handle(ctx, rc)).To(Succeed())
		return rc.Resource
	}

	BeforeEach(func() {
		ctx = context.Background()
		api = route53fake.New()
		dns = dnsprovider.NewRoute53WithAPI(api, "Z123", "example.com", 600)
	})

	It("should keep every live node when a node joins", func() {
		st := upsert([]string{"10.0.0.1", "10.0.0.2"}, "10.0.0.2", "10.0.0.1", "10.0.0.2", "10.0.0.3")

		Expect(api.Values(zoneName, types.RRTypeA)).To(ConsistOf("10.0.0.1", "10.0.0.2", "10.0.0.3"))
		Expect(st.DNSFailures).To(BeZero())
		Expect(st.ProviderRecordID).To(Equal("app-k8s|A|10.0.0.3"))
	})

	It("should write nothing when only the node order changes", func() {
		api.Put(zoneName, types.RRTypeA, "10.0.0.1", "10.0.0.2")
		before := len(api.Changes())

		upsert([]string{"10.0.0.1", "10.0.0.2"}, "10.0.0.2", "10.0.0.2", "10.0.0.1")

		Expect(api.Values(zoneName, types.RRTypeA)).To(ConsistOf("10.0.0.1", "10.0.0.2"))
		Expect(api.Changes()).To(HaveLen(before))
	})

	It("should drop nodes that left and swap in the new one", func() {
		st := upsert([]string{"10.0.0.1", "10.0.0.2"}, "10.0.0.2", "10.0.0.3")

		Expect(api.Values(zoneName, types.RRTypeA)).To(Equal([]string{"10.0.0.3"}))
		Expect(st.ProviderRecordID).To(Equal("app-k8s|A|10.0.0.3"))
	})

	It("should keep both families when a node gains an IPv6 address", func() {
		upsert([]string{"10.0.0.1"}, "10.0.0.1", "10.0.0.1", "fd00::1")

		Expect(api.Values(zoneName, types.RRTypeA)).To(Equal([]string{"10.0.0.1"}))
		Expect(api.Values(zoneName, types.RRTypeAaaa)).To(Equal([]string{"fd00::1"}))
	})
})

var _ = Describe("Remover", func() {
	var (
		ctx    context.Context
		st     *store.Memory
		dns    *dnsfake.Provider
		routes *gatewayfake.Routes
		public *publicRecorder
		rm     *hostsync.Remover
	)

	BeforeEach(func() {
		ctx = context.Background()
		st = store.NewMemory()
		dns = dnsfake.New()
		routes = gatewayfake.New()
		public = &publicRecorder{}
		rm = hostsync.NewRemover(st, dns, routes, public, rules)
	})

	It("should delete every node value even when no provider id was stored", func() {
		dns.Seed("app-k8s", "A", "10.0.0.1")
		Expect(st.SaveHost(ctx, &store.HostRecord{
			Host: "app-k8s.example.com", RR: "app-k8s", NodeIPs: []string{"10.0.0.1"}, NodePort: 30080,
		})).To(Succeed())

		removed, err := rm.Remove(ctx, "app-k8s.example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(removed).To(BeTrue())

		Expect(dns.CallsFor("delete")).To(Equal([]dnsfake.Call{{Op: "delete", ID: "app-k8s|A|10.0.0.1"}}))
		Expect(dns.Records()).To(BeEmpty())
		Expect(routes.Calls()).To(HaveLen(1))
		Expect(public.removed).To(Equal([]string{"app-k8s.example.com"}))
		_, err = st.GetHost(ctx, "app-k8s.example.com")
		Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
	})

	It("should report hosts that were not managed", func() {
		removed, err := rm.Remove(ctx, "ghost-k8s.example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(removed).To(BeFalse())
		Expect(routes.Calls()).To(BeEmpty())
		Expect(public.removed).To(BeEmpty())
	})

	It("should still finish when the public record cannot be removed", func() {
		public.err = errors.New("zone locked")
		Expect(st.SaveHost(ctx, &store.HostRecord{
			Host: "app-k8s.example.com", RR: "app-k8s", ProviderRecordID: dns.Seed("app-k8s", "A", "10.0.0.1"),
		})).To(Succeed())

		removed, err := rm.Remove(ctx, "app-k8s.example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(removed).To(BeTrue())
		Expect(dns.Records()).To(BeEmpty())
	})

	It("should leave nothing in a Route53 zone for a host on two nodes", func() {
		api := route53fake.New()
		api.Put("app-k8s.example.com.", types.RRTypeA, "10.0.0.1", "10.0.0.2")
		rm = hostsync.NewRemover(st, dnsprovider.NewRoute53WithAPI(api, "Z123", "example.com", 600),
			routes, public, rules)
		Expect(st.SaveHost(ctx, &store.HostRecord{
			Host: "app-k8s.example.com", RR: "app-k8s", NodeIPs: []string{"10.0.0.1", "10.0.0.2"},
			ProviderRecordID: "app-k8s|A|10.0.0.2", RecordType: "A",
		})).To(Succeed())

		removed, err := rm.Remove(ctx, "app-k8s.example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(removed).To(BeTrue())
		Expect(api.Values("app-k8s.example.com.", types.RRTypeA)).To(BeNil())
	})
})
