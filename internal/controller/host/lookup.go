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

package host

import (
	"context"
	"fmt"
	"net/netip"
	"sort"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	domainhost "github.com/golgoth31/gateway-autodns/internal/domain/host"
)

// HTTPPortName is the router service port carrying plain HTTP.
const HTTPPortName = "http"

// ResolveNamesHandler derives the record name, router service and external host.
type ResolveNamesHandler struct {
	rules domainhost.Rules
}

// NewResolveNamesHandler creates a ResolveNamesHandler.
func NewResolveNamesHandler(rules domainhost.Rules) *ResolveNamesHandler {
	return &ResolveNamesHandler{rules: rules}
}

// Handle implements reconciler.Handler.
func (h *ResolveNamesHandler) Handle(_ context.Context, rc *Context) error {
	st := rc.Resource
	st.RR = h.rules.ResourceRecord(st.Host)
	st.ServiceName = h.rules.ServiceName(st.ClassName)
	st.ExternalHost = h.rules.ExternalHost(st.Host)
	return nil
}

// LookupServiceHandler finds the router service and its HTTP node port.
// A missing service or port skips the host until a later event.
type LookupServiceHandler struct {
	reader    client.Reader
	namespace string
}

// NewLookupServiceHandler creates a LookupServiceHandler reading services from namespace.
func NewLookupServiceHandler(reader client.Reader, namespace string) *LookupServiceHandler {
	return &LookupServiceHandler{reader: reader, namespace: namespace}
}

// Handle implements reconciler.Handler.
func (h *LookupServiceHandler) Handle(ctx context.Context, rc *Context) error {
	log := logf.FromContext(ctx).WithName("lookup-service")
	st := rc.Resource

	var svc corev1.Service
	err := h.reader.Get(ctx, client.ObjectKey{Namespace: h.namespace, Name: st.ServiceName}, &svc)
	if err != nil {
		if apierrors.IsNotFound(err) {
			err = fmt.Errorf("service %s/%s: %w", h.namespace, st.ServiceName, domainhost.ErrLookupMiss)
		}
		log.Info("skipping host, router service unavailable", "host", st.Host,
			"service", st.ServiceName, "namespace", h.namespace, "reason", err.Error())
		rc.Stop(StopServiceMissing)
		return nil
	}

	port, ok := httpNodePort(&svc)
	if !ok {
		log.Info("skipping host, router service has no http node port", "host", st.Host,
			"service", st.ServiceName, "namespace", h.namespace)
		rc.Stop(StopNodePortMissing)
		return nil
	}
	st.NodePort = port
	return nil
}

func httpNodePort(svc *corev1.Service) (int32, bool) {
	for _, p := range svc.Spec.Ports {
		if (p.Name == HTTPPortName || p.Port == 80) && p.NodePort != 0 {
			return p.NodePort, true
		}
	}
	return 0, false
}

// CollectNodeIPsHandler gathers the InternalIP of every node, ordered by node name.
type CollectNodeIPsHandler struct {
	reader client.Reader
}

// NewCollectNodeIPsHandler creates a CollectNodeIPsHandler.
func NewCollectNodeIPsHandler(reader client.Reader) *CollectNodeIPsHandler {
	return &CollectNodeIPsHandler{reader: reader}
}

// Handle implements reconciler.Handler.
func (h *CollectNodeIPsHandler) Handle(ctx context.Context, rc *Context) error {
	log := logf.FromContext(ctx).WithName("collect-node-ips")

	var nodes corev1.NodeList
	if err := h.reader.List(ctx, &nodes); err != nil {
		log.Error(err, "failed to list nodes, skipping host", "host", rc.Resource.Host)
		rc.Stop(StopNodesUnlisted)
		return nil
	}

	rc.Resource.NodeIPs = NodeInternalIPs(nodes.Items)
	log.V(1).Info("collected node addresses", "host", rc.Resource.Host, "ips", rc.Resource.NodeIPs)
	return nil
}

// NodeInternalIPs returns the non-loopback InternalIP addresses of nodes in node
// name order, so that an unchanged cluster always yields the same list.
func NodeInternalIPs(nodes []corev1.Node) []string {
	sorted := make([]corev1.Node, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var ips []string
	for _, n := range sorted {
		for _, addr := range n.Status.Addresses {
			if addr.Type != corev1.NodeInternalIP {
				continue
			}
			ip, err := netip.ParseAddr(addr.Address)
			if err != nil || ip.IsLoopback() {
				continue
			}
			ips = append(ips, ip.String())
		}
	}
	return ips
}
