package events

// Authorizer decides who may read or change events. Reads are public;
// mutations (field updates, image changes, deletion) belong to the creator.
type Authorizer interface {
	AuthorizeRead(event *Event, actingUserID string) error
	AuthorizeMutation(event *Event, actingUserID string) error
	AuthorizeSelfAccess(pathUserID, actingUserID string) error
}

// OwnershipAuthorizer is the default Authorizer.
type OwnershipAuthorizer struct{}

func (OwnershipAuthorizer) AuthorizeRead(*Event, string) error {
	return nil
}

func (OwnershipAuthorizer) AuthorizeMutation(event *Event, actingUserID string) error {
	if actingUserID == "" {
		return ErrUnauthenticated
	}
	if event == nil || event.CreatorID != actingUserID {
		return ErrForbidden
	}
	return nil
}

func (OwnershipAuthorizer) AuthorizeSelfAccess(pathUserID, actingUserID string) error {
	if actingUserID == "" {
		return ErrUnauthenticated
	}
	if pathUserID != actingUserID {
		return ErrForbidden
	}
	return nil
}
