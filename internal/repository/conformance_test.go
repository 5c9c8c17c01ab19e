package repository_test

import (
	"github.com/mfgtrack/be-order-tracking/internal/repository"
	"github.com/mfgtrack/be-order-tracking/internal/service"
)

// Compile-time checks that the real repositories satisfy the interfaces the
// services declare. The service tests run against in-memory fakes, so
// without these pins a signature drift at this seam would only surface when
// cmd/server is built.
var (
	_ service.OrderStore        = (*repository.OrderRepository)(nil)
	_ service.CatalogReader     = (*repository.StateCatalogRepository)(nil)
	_ service.CatalogStore      = (*repository.StateCatalogRepository)(nil)
	_ service.DepartmentReader  = (*repository.DepartmentRepository)(nil)
	_ service.DepartmentStore   = (*repository.DepartmentRepository)(nil)
	_ service.OrderStatusReader = (*repository.OrderStatusRepository)(nil)
	_ service.OrderStatusStore  = (*repository.OrderStatusRepository)(nil)
	_ service.RuleStore         = (*repository.RecipientRuleRepository)(nil)
	_ service.RuleAdminStore    = (*repository.RecipientRuleRepository)(nil)
	_ service.PreferenceStore   = (*repository.PreferenceRepository)(nil)
	_ service.NotificationStore = (*repository.NotificationRepository)(nil)
	_ service.InboxStore        = (*repository.NotificationRepository)(nil)
	_ service.UserDirectory     = (*repository.UserDirectoryRepository)(nil)
	_ service.DeviceTokenStore  = (*repository.UserDirectoryRepository)(nil)
)
