// Package requests runs the destination request workflow: users propose
// destinations, administrators edit, approve or reject them. Approval
// materialises exactly one catalogue Destination.
package requests

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/loiphan2202/BAT/access"
	"github.com/loiphan2202/BAT/apperr"
	"github.com/loiphan2202/BAT/ledger"
	"github.com/loiphan2202/BAT/models"
	"github.com/loiphan2202/BAT/notify"
	"github.com/loiphan2202/BAT/utils"
	"github.com/loiphan2202/BAT/validation"

	"github.com/sirupsen/logrus"
)

const (
	msgNotFound  = "Request not found"
	msgProcessed = "Request has already been processed"
)

// ImageStore keeps the image attached to a request.
type ImageStore interface {
	SaveImage(r io.Reader, filename string) (string, error)
	Remove(url string)
}

// Upload is an image file received with a submission.
type Upload struct {
	Filename string
	Body     io.Reader
}

type Deps struct {
	Store    ledger.Store
	Notifier notify.Dispatcher
	Images   ImageStore
	Log      logrus.FieldLogger
	Now      func() time.Time
}

type Service struct {
	store    ledger.Store
	notifier notify.Dispatcher
	images   ImageStore
	validate *validation.Validator
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		store:    d.Store,
		notifier: d.Notifier,
		images:   d.Images,
		validate: validation.New(),
		log:      d.Log,
		now:      d.Now,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SubmitInput is a proposed destination. Image may be an existing URL when
// no file is uploaded.
type SubmitInput struct {
	Name        string   `json:"name" validate:"required"`
	Landscape   string   `json:"landscape" validate:"required,landscape"`
	Description string   `json:"description" validate:"required"`
	Rating      *float64 `json:"rating" validate:"required,gte=0,lte=5"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Duration    string   `json:"duration" validate:"required"`
	Popular     bool     `json:"popular"`
	Image       string   `json:"image"`
}

// EditInput overwrites only the fields that are set.
type EditInput struct {
	Name        *string  `json:"name" validate:"omitempty,min=1"`
	Landscape   *string  `json:"landscape" validate:"omitempty,landscape"`
	Description *string  `json:"description" validate:"omitempty,min=1"`
	Image       *string  `json:"image" validate:"omitempty,min=1"`
	Rating      *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Duration    *string  `json:"duration" validate:"omitempty,min=1"`
	Popular     *bool    `json:"popular"`
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}

func (in *EditInput) trim() {
	in.Name = trimPtr(in.Name)
	in.Landscape = trimPtr(in.Landscape)
	in.Description = trimPtr(in.Description)
	in.Image = trimPtr(in.Image)
	in.Duration = trimPtr(in.Duration)
}

func (in EditInput) patch() models.RequestPatch {
	p := models.RequestPatch{
		Name:        in.Name,
		Description: in.Description,
		Image:       in.Image,
		Rating:      in.Rating,
		Price:       in.Price,
		Duration:    in.Duration,
		Popular:     in.Popular,
	}
	if in.Landscape != nil {
		if l, ok := models.ParseLandscape(*in.Landscape); ok {
			p.Landscape = &l
		}
	}
	return p
}

// Submit records a Pending request owned by the actor.
func (s *Service) Submit(ctx context.Context, actor access.Actor, in SubmitInput, upload *Upload) (*models.DestinationRequest, error) {
	if err := access.Check(actor, "", access.RoleUser); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Duration = strings.TrimSpace(in.Duration)
	in.Image = strings.TrimSpace(in.Image)
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}
	landscape, _ := models.ParseLandscape(in.Landscape)

	image := in.Image
	if upload != nil {
		if s.images == nil {
			return nil, apperr.Internal("image uploads are not configured", nil)
		}
		url, err := s.images.SaveImage(upload.Body, upload.Filename)
		if err != nil {
			return nil, err
		}
		image = url
	}
	if image == "" {
		return nil, apperr.Field("image", "is required")
	}

	now := s.now().UTC()
	req := models.DestinationRequest{
		ID:     utils.GetUUID(),
		UserID: actor.UserID,
		DestinationContent: models.DestinationContent{
			Name:        in.Name,
			Landscape:   landscape,
			Description: in.Description,
			Image:       image,
			Rating:      *in.Rating,
			Price:       *in.Price,
			Duration:    in.Duration,
			Popular:     in.Popular,
		},
		Status:    models.RequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertRequest(ctx, &req); err != nil {
		if upload != nil {
			s.images.Remove(image)
		}
		return nil, apperr.Internal("insert request", err)
	}
	s.log.WithFields(logrus.Fields{"requestId": req.ID, "userId": actor.UserID, "name": req.Name}).Info("destination request submitted")
	return &req, nil
}

// ListOwn returns the actor's requests, newest first.
func (s *Service) ListOwn(ctx context.Context, actor access.Actor) ([]models.DestinationRequest, error) {
	if err := access.Check(actor, "", access.RoleUser); err != nil {
		return nil, err
	}
	out, err := s.store.ListRequests(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.Internal("list requests", err)
	}
	return out, nil
}

func (s *Service) ListAll(ctx context.Context, actor access.Actor) ([]models.DestinationRequest, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	out, err := s.store.ListRequests(ctx, "")
	if err != nil {
		return nil, apperr.Internal("list requests", err)
	}
	return out, nil
}

// Edit overwrites the supplied content fields of a Pending request.
func (s *Service) Edit(ctx context.Context, actor access.Actor, id string, in EditInput) (*models.DestinationRequest, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	in.trim()
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}
	req, err := s.store.EditPendingRequest(ctx, id, in.patch(), s.now().UTC())
	if err != nil {
		return nil, translate(err, "Cannot edit processed request")
	}
	s.log.WithFields(logrus.Fields{"requestId": id, "by": actor.UserID}).Info("destination request edited")
	return req, nil
}

// Approve moves a Pending request to Approved and creates the Destination
// from the content the approval committed. The ledger writes both or
// neither, so a failed approval leaves the request Pending and editable.
func (s *Service) Approve(ctx context.Context, actor access.Actor, id string) (*models.Destination, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	dest := models.Destination{
		ID:        utils.GetUUID(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	req, err := s.store.ApproveRequest(ctx, id, &dest, now)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicate) {
			return nil, apperr.Conflict(msgProcessed)
		}
		return nil, translate(err, msgProcessed)
	}
	log := s.log.WithFields(logrus.Fields{"requestId": id, "by": actor.UserID})
	log.WithField("destinationId", dest.ID).Info("destination request approved")

	s.notifySubmitter(ctx, log, notify.RequestApproved, *req)
	return &dest, nil
}

// Reject moves a Pending request to Rejected. Nothing else is created.
func (s *Service) Reject(ctx context.Context, actor access.Actor, id string) (*models.DestinationRequest, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	req, err := s.store.TransitionRequest(ctx, id, models.RequestPending, models.RequestRejected, s.now().UTC())
	if err != nil {
		return nil, translate(err, msgProcessed)
	}
	log := s.log.WithFields(logrus.Fields{"requestId": id, "by": actor.UserID})
	log.Info("destination request rejected")

	s.notifySubmitter(ctx, log, notify.RequestRejected, *req)
	return req, nil
}

// Delete removes a request for its submitter or an administrator.
func (s *Service) Delete(ctx context.Context, actor access.Actor, id string) error {
	req, err := s.store.FindRequest(ctx, id)
	if err != nil {
		return translate(err, msgProcessed)
	}
	if err := access.Check(actor, req.UserID, access.RoleAdmin); err != nil {
		return err
	}
	if err := s.store.DeleteRequest(ctx, id); err != nil {
		return translate(err, msgProcessed)
	}
	// an approved destination keeps pointing at the image
	if s.images != nil && req.Status != models.RequestApproved {
		s.images.Remove(req.Image)
	}
	s.log.WithFields(logrus.Fields{"requestId": id, "by": actor.UserID}).Info("destination request deleted")
	return nil
}

func (s *Service) notifySubmitter(ctx context.Context, log logrus.FieldLogger, kind notify.Kind, req models.DestinationRequest) {
	user, err := s.store.FindUser(ctx, req.UserID)
	if err != nil {
		log.WithError(err).Warn("request submitter lookup failed; notification skipped")
		return
	}
	notify.Fire(ctx, s.notifier, log, notify.Notification{
		Kind: kind,
		To:   user.Email,
		Data: notify.Data{
			Name:            user.DisplayName(),
			DestinationName: req.Name,
			RequestID:       req.ID,
		},
	})
}

func translate(err error, conflict string) error {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return apperr.NotFound(msgNotFound)
	case errors.Is(err, ledger.ErrConflict):
		return apperr.Conflict(conflict)
	}
	return apperr.Internal("ledger", err)
}
