package authz

// Permission names used by the platform policies.
const (
	PermDocumentsRoute      = "documents.route"
	PermDocumentsViewRouted = "documents.view-routed"
	PermDocumentsForward    = "documents.forward"
	PermDocumentsDownload   = "documents.download"
	PermDocumentsDelete     = "documents.delete"

	PermStorageUpload   = "storage.upload"
	PermStorageView     = "storage.view-department"
	PermStorageDownload = "storage.download"
	PermStorageEdit     = "storage.edit"
	PermStorageDelete   = "storage.delete"

	PermIncidentsCreate  = "incidents.create"
	PermIncidentsView    = "incidents.view-department"
	PermIncidentsAssign  = "incidents.assign"
	PermIncidentsResolve = "incidents.resolve"

	PermAnnouncementsCreate = "announcements.create"
	PermMessagesSendDept    = "messages.send-department"
	PermMessagesSendAll     = "messages.send-all-departments"
	PermMessagesSendDirect  = "messages.send-individual"
	PermMessagesView        = "messages.view-department"

	PermVisitorsCheckIn = "visitors.check-in"
	PermVisitorsView    = "visitors.view-department"

	PermSchedulesManageOwn  = "schedules.manage-own"
	PermSchedulesManageDept = "schedules.manage-department"
	PermSchedulesView       = "schedules.view-department"

	PermRolesView   = "roles.view"
	PermRolesCreate = "roles.create"
	PermRolesUpdate = "roles.update"
	PermRolesDelete = "roles.delete"
	PermRolesAssign = "roles.assign"

	PermUsersCreate     = "users.create"
	PermUsersView       = "users.view-department"
	PermUsersUpdate     = "users.update"
	PermUsersDeactivate = "users.deactivate"
	PermUsersDelete     = "users.delete"

	PermAnalyticsView = "analytics.view-department"

	PermAuditLogsView = "audit-logs.view-department"

	PermExportDeptData = "export.department-data"

	PermSystemAdmin = "system.admin"
)
