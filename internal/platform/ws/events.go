package ws

// Event types pushed through the hub. Clients switch on these to decide
// which views to refresh.
const (
	EventRelationshipRequestCreated = "relationship.request.created"
	EventRelationshipRequestUpdated = "relationship.request.updated"
	EventRelationshipCreated        = "relationship.created"
	EventRelationshipRemoved        = "relationship.removed"
	EventPrimaryDoctorUpdated       = "relationship.primary.updated"

	EventApprovalRequestCreated   = "approval.request.created"
	EventApprovalRequestResolved  = "approval.request.resolved"
	EventApprovalRequestCancelled = "approval.request.cancelled"

	EventItemListUpdated     = "item.list.updated"
	EventPatientItemsUpdated = "patient.items.updated"

	EventInteractionNotificationCreated = "notification.interaction.created"
	EventResponseNotificationCreated    = "notification.response.created"
)
