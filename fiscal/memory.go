/*
memory.go - In-memory fiscal configuration (for testing/dev)

PURPOSE:
  Map-backed OrganizationLookup + PatternSource. Mirrors the guarantees
  of the SQLite-backed source: absent records are (nil, nil), never errors.

SEE ALSO:
  - resolver.go: The contracts this implements
  - store/sqlite: Production implementation
*/
package fiscal

import (
	"context"
	"sync"
)

// MemoryConfig implements OrganizationLookup and PatternSource in memory.
type MemoryConfig struct {
	mu             sync.RWMutex
	orgs           map[OrganizationID]OrganizationNode
	fiscalYears    map[PatternID]FiscalYearPattern
	monthlyPeriods map[PatternID]MonthlyPeriodPattern
	tenants        map[TenantID]TenantDefaults
}

func NewMemoryConfig() *MemoryConfig {
	return &MemoryConfig{
		orgs:           make(map[OrganizationID]OrganizationNode),
		fiscalYears:    make(map[PatternID]FiscalYearPattern),
		monthlyPeriods: make(map[PatternID]MonthlyPeriodPattern),
		tenants:        make(map[TenantID]TenantDefaults),
	}
}

func (m *MemoryConfig) PutOrganization(node OrganizationNode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs[node.ID] = node
}

func (m *MemoryConfig) PutFiscalYearPattern(p FiscalYearPattern) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fiscalYears[p.ID] = p
}

func (m *MemoryConfig) PutMonthlyPeriodPattern(p MonthlyPeriodPattern) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.monthlyPeriods[p.ID] = p
}

func (m *MemoryConfig) PutTenantDefaults(d TenantDefaults) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[d.TenantID] = d
}

func (m *MemoryConfig) FindOrganization(_ context.Context, id OrganizationID) (*OrganizationNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	node, ok := m.orgs[id]
	if !ok {
		return nil, nil
	}
	return &node, nil
}

func (m *MemoryConfig) FiscalYearPattern(_ context.Context, id PatternID) (*FiscalYearPattern, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.fiscalYears[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryConfig) MonthlyPeriodPattern(_ context.Context, id PatternID) (*MonthlyPeriodPattern, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.monthlyPeriods[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryConfig) TenantDefaults(_ context.Context, tenant TenantID) (*TenantDefaults, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.tenants[tenant]
	if !ok {
		return nil, nil
	}
	return &d, nil
}
