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

package controller_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/golgoth31/gateway-autodns/internal/controller"
	"github.com/golgoth31/gateway-autodns/internal/dnsprovider/dnsfake"
	domainhost "github.com/golgoth31/gateway-autodns/internal/domain/host"
	"github.com/golgoth31/gateway-autodns/internal/gateway/gatewayfake"
	"github.com/golgoth31/gateway-autodns/internal/publicip"
	"github.com/golgoth31/gateway-autodns/internal/store"
	"github.com/golgoth31/gateway-autodns/internal/watch"
)

const (
	routerNamespace = "kubesphere-controls-system"
	managedClass    = "kubesphere-router-namespace-demo"
	appHost         = "app-k8s.example.com"
	apiHost         = "api-k8s.example.com"
)

var rules = domainhost.Rules{
	ClassPrefix:        "kubesphere-router-namespace-",
	ClassSuffix:        "-namespace",
	HostSuffix:         "-k8s.example.com",
	ExternalHostSuffix: "-nj.example.com",
	Domain:             "example.com",
}

func routerService(ports ...corev1.ServicePort) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: "kubesphere-router-demo", Namespace: routerNamespace},
		Spec:       corev1.ServiceSpec{Type: corev1.ServiceTypeNodePort, Ports: ports},
	}
}

func node(name string, addrs ...corev1.NodeAddress) *corev1.Node {
	return &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Status:     corev1.NodeStatus{Addresses: addrs},
	}
}

func internalIP(ip string) corev1.NodeAddress {
	return corev1.NodeAddress{Type: corev1.NodeInternalIP, Address: ip}
}

func newIngress(class string, hosts ...string) *networkingv1.Ingress {
	ing := &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "demo"},
		Spec:       networkingv1.IngressSpec{IngressClassName: ptr.To(class)},
	}
	for _, h := range hosts {
		ing.Spec.Rules = append(ing.Spec.Rules, networkingv1.IngressRule{Host: h})
	}
	return ing
}

var _ = Describe("IngressReconciler", func() {
	var (
		ctx    context.Context
		st     *store.Memory
		dns    *dnsfake.Provider
		routes *gatewayfake.Routes
		r      *controller.IngressReconciler
	)

	build := func(objs ...client.Object) {
		c := fake.NewClientBuilder().WithObjects(objs...).Build()
		public := publicip.NewPropagator(st, dns, rules, "token")
		r = controller.NewIngressReconciler(c, st, dns, routes, public, rules, routerNamespace)
	}

	defaultObjects := func() []client.Object {
		return []client.Object{
			routerService(corev1.ServicePort{Name: "http", Port: 80, NodePort: 30080}),
			node("node-b", internalIP("10.0.0.2")),
			node("node-a", internalIP("10.0.0.1"),
				corev1.NodeAddress{Type: corev1.NodeExternalIP, Address: "198.51.100.1"}),
			node("node-c", internalIP("127.0.0.1")),
		}
	}

	add := func(ing *networkingv1.Ingress) {
		r.Handle(ctx, watch.Event{Kind: watch.KindAdd, Object: ing})
	}

	BeforeEach(func() {
		ctx = context.Background()
		st = store.NewMemory()
		dns = dnsfake.New()
		routes = gatewayfake.New()
	})

	Context("when a managed ingress is added", func() {
		BeforeEach(func() {
			build(defaultObjects()...)
		})

		It("should create dns records, the stored record and the gateway route", func() {
			add(newIngress(managedClass, appHost, "other.example.org"))

			adds := dns.CallsFor("add")
			Expect(adds).To(HaveLen(2))
			Expect(adds[0]).To(Equal(dnsfake.Call{Op: "add", RR: "app-k8s", Type: "A", Value: "10.0.0.1"}))
			Expect(adds[1]).To(Equal(dnsfake.Call{Op: "add", RR: "app-k8s", Type: "A", Value: "10.0.0.2"}))

			rec, err := st.GetHost(ctx, appHost)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.RR).To(Equal("app-k8s"))
			Expect(rec.NodeIPs).To(Equal([]string{"10.0.0.1", "10.0.0.2"}))
			Expect(rec.NodePort).To(Equal(int32(30080)))
			Expect(rec.ProviderRecordID).To(Equal("app-k8s|A|10.0.0.2"))
			Expect(rec.RecordType).To(Equal("A"))

			Expect(routes.Calls()).To(Equal([]gatewayfake.Call{{
				Op: "add", UpstreamHost: appHost, ExternalHost: "app-nj.example.com", NodePort: 30080,
			}}))

			_, err = st.GetHost(ctx, "other.example.org")
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		})

		It("should make no backend calls when the same event is delivered again", func() {
			ing := newIngress(managedClass, appHost)
			add(ing)
			dns.Reset()
			before := len(routes.Calls())

			add(ing)
			r.Handle(ctx, watch.Event{Kind: watch.KindUpdate, Object: ing, Old: ing})

			Expect(dns.Calls()).To(BeEmpty())
			Expect(routes.Calls()).To(HaveLen(before))
		})

		It("should ignore ingresses of another class", func() {
			add(newIngress("nginx", appHost))

			Expect(dns.Calls()).To(BeEmpty())
			Expect(routes.Calls()).To(BeEmpty())
			hosts, err := st.ListHosts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(hosts).To(BeEmpty())
		})

		It("should point the public record at the reported address", func() {
			Expect(st.SavePublicIP(ctx, "2001:db8::7")).To(Succeed())

			add(newIngress(managedClass, appHost))

			public := dns.CallsFor("add")
			Expect(public).To(ContainElement(dnsfake.Call{Op: "add", RR: "app-nj", Type: "AAAA", Value: "2001:db8::7"}))
		})
	})

	Context("when the dns provider fails", func() {
		BeforeEach(func() {
			build(defaultObjects()...)
			dns.FailOn = func(c dnsfake.Call) error {
				if c.Op == "add" && c.Value == "10.0.0.1" {
					return errors.New("quota exceeded")
				}
				return nil
			}
		})

		It("should keep the last successful id and still update store and gateway", func() {
			add(newIngress(managedClass, appHost))

			Expect(dns.CallsFor("add")).To(HaveLen(2))
			rec, err := st.GetHost(ctx, appHost)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.NodeIPs).To(Equal([]string{"10.0.0.1", "10.0.0.2"}))
			Expect(rec.ProviderRecordID).To(Equal("app-k8s|A|10.0.0.2"))
			Expect(routes.Calls()).To(HaveLen(1))
		})

		It("should treat the host as converged on the next identical event", func() {
			dns.FailOn = func(dnsfake.Call) error { return errors.New("provider down") }
			ing := newIngress(managedClass, appHost)
			add(ing)

			rec, err := st.GetHost(ctx, appHost)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ProviderRecordID).To(BeEmpty())
			Expect(routes.Calls()).To(HaveLen(1))

			dns.Reset()
			add(ing)
			Expect(dns.Calls()).To(BeEmpty())
			Expect(routes.Calls()).To(HaveLen(1))
		})
	})

	Context("when node addresses change", func() {
		It("should update the stored provider record and replace the route", func() {
			Expect(st.SaveHost(ctx, &store.HostRecord{
				Host: appHost, RR: "app-k8s", NodeIPs: []string{"10.0.0.9"}, NodePort: 30080,
				ProviderRecordID: dns.Seed("app-k8s", "A", "10.0.0.9"), RecordType: "A",
			})).To(Succeed())
			build(
				routerService(corev1.ServicePort{Name: "web", Port: 80, NodePort: 30081}),
				node("node-a", internalIP("fd00::1")),
			)

			add(newIngress(managedClass, appHost))

			updates := dns.CallsFor("update")
			Expect(updates).To(HaveLen(1))
			Expect(updates[0]).To(Equal(dnsfake.Call{
				Op: "update", ID: "app-k8s|A|10.0.0.9", RR: "app-k8s", Type: "AAAA", Value: "fd00::1",
			}))
			Expect(dns.CallsFor("add")).To(BeEmpty())
			Expect(dns.CallsFor("delete")).To(BeEmpty())
			Expect(dns.Values("app-k8s", "A")).To(BeEmpty())
			Expect(dns.Values("app-k8s", "AAAA")).To(Equal([]string{"fd00::1"}))

			rec, err := st.GetHost(ctx, appHost)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.NodePort).To(Equal(int32(30081)))
			Expect(rec.ProviderRecordID).To(Equal("app-k8s|AAAA|fd00::1"))
			Expect(rec.RecordType).To(Equal("AAAA"))
			Expect(routes.Calls()[0].Op).To(Equal("update"))
		})
	})

	Context("when a node joins", func() {
		It("should add the new node and keep the existing ones", func() {
			build(defaultObjects()...)
			ing := newIngress(managedClass, appHost)
			add(ing)

			build(append(defaultObjects(), node("node-d", internalIP("10.0.0.3")))...)
			r.Handle(ctx, watch.Event{Kind: watch.KindUpdate, Object: ing, Old: ing})

			Expect(dns.Values("app-k8s", "A")).To(ConsistOf("10.0.0.1", "10.0.0.2", "10.0.0.3"))
			rec, err := st.GetHost(ctx, appHost)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.NodeIPs).To(Equal([]string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}))
		})
	})

	Context("when the router service cannot be used", func() {
		It("should skip hosts whose service is missing", func() {
			build(node("node-a", internalIP("10.0.0.1")))

			add(newIngress(managedClass, appHost))

			Expect(dns.Calls()).To(BeEmpty())
			Expect(routes.Calls()).To(BeEmpty())
			_, err := st.GetHost(ctx, appHost)
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		})

		It("should skip hosts whose service has no http node port", func() {
			build(
				routerService(corev1.ServicePort{Name: "https", Port: 443, NodePort: 30443}),
				node("node-a", internalIP("10.0.0.1")),
			)

			add(newIngress(managedClass, appHost))

			Expect(dns.Calls()).To(BeEmpty())
			Expect(routes.Calls()).To(BeEmpty())
		})
	})

	Context("when an update drops a host", func() {
		It("should remove the dropped host exactly once and leave the other converged", func() {
			build(defaultObjects()...)
			old := newIngress(managedClass, appHost, apiHost)
			add(old)
			dns.Reset()
			routesBefore := len(routes.Calls())

			r.Handle(ctx, watch.Event{Kind: watch.KindUpdate, Object: newIngress(managedClass, appHost), Old: old})

			Expect(dns.CallsFor("delete")).To(ConsistOf(
				dnsfake.Call{Op: "delete", ID: "api-k8s|A|10.0.0.1"},
				dnsfake.Call{Op: "delete", ID: "api-k8s|A|10.0.0.2"},
			))
			Expect(dns.Values("api-k8s", "A")).To(BeEmpty())
			Expect(dns.Values("app-k8s", "A")).To(Equal([]string{"10.0.0.1", "10.0.0.2"}))

			newRouteCalls := routes.Calls()[routesBefore:]
			Expect(newRouteCalls).To(Equal([]gatewayfake.Call{{
				Op: "delete", UpstreamHost: apiHost, ExternalHost: "api-nj.example.com",
			}}))

			_, err := st.GetHost(ctx, apiHost)
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
			_, err = st.GetHost(ctx, appHost)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should remove every host when the class stops matching", func() {
			build(defaultObjects()...)
			old := newIngress(managedClass, appHost, apiHost)
			add(old)

			r.Handle(ctx, watch.Event{Kind: watch.KindUpdate, Object: newIngress("nginx", appHost, apiHost), Old: old})

			hosts, err := st.ListHosts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(hosts).To(BeEmpty())
		})
	})

	Context("when an ingress is deleted", func() {
		BeforeEach(func() {
			build(defaultObjects()...)
		})

		It("should clear the stored record even when every backend call fails", func() {
			ing := newIngress(managedClass, appHost)
			add(ing)
			dns.FailOn = func(dnsfake.Call) error { return errors.New("provider down") }
			routes.FailOn = func(gatewayfake.Call) error { return errors.New("gateway down") }

			r.Handle(ctx, watch.Event{Kind: watch.KindDelete, Object: ing})

			Expect(dns.CallsFor("delete")).To(HaveLen(2))
			_, err := st.GetHost(ctx, appHost)
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		})

		It("should remove the public record", func() {
			Expect(st.SavePublicIP(ctx, "203.0.113.7")).To(Succeed())
			ing := newIngress(managedClass, appHost)
			add(ing)
			Expect(dns.Records()).To(HaveLen(3))

			r.Handle(ctx, watch.Event{Kind: watch.KindDelete, Object: ing})

			Expect(dns.Records()).To(BeEmpty())
		})

		It("should delete the value of every node, not only the tracked one", func() {
			ing := newIngress(managedClass, appHost)
			add(ing)
			Expect(dns.Values("app-k8s", "A")).To(Equal([]string{"10.0.0.1", "10.0.0.2"}))

			r.Handle(ctx, watch.Event{Kind: watch.KindDelete, Object: ing})

			Expect(dns.Values("app-k8s", "A")).To(BeEmpty())
		})

		It("should do nothing for hosts that were never stored", func() {
			r.Handle(ctx, watch.Event{Kind: watch.KindDelete, Object: newIngress(managedClass, appHost)})

			Expect(dns.Calls()).To(BeEmpty())
			Expect(routes.Calls()).To(BeEmpty())
		})
	})
})
