package email

import (
	"context"
	"html"
	"strings"
	"time"
)

// Render substitutes {{token}} markers in a single pass. Values are
// HTML-escaped so parent-supplied names cannot inject markup or further
// template syntax into the body. Unknown tokens are left in place.
func Render(template string, values map[string]string) string {
	var b strings.Builder
	b.Grow(len(template))

	for {
		start := strings.Index(template, "{{")
		if start < 0 {
			b.WriteString(template)
			break
		}
		end := strings.Index(template[start:], "}}")
		if end < 0 {
			b.WriteString(template)
			break
		}
		end += start

		b.WriteString(template[:start])
		token := strings.TrimSpace(template[start+2 : end])
		if value, ok := values[token]; ok {
			b.WriteString(html.EscapeString(value))
		} else {
			b.WriteString(template[start : end+2])
		}
		template = template[end+2:]
	}

	return b.String()
}

const bookingConfirmationTemplate = `<p>Hi {{parentName}},</p>
<p>Your booking for {{studentName}} is confirmed.</p>
<p>Reference: <strong>{{bookingRef}}</strong><br>
Class: {{className}}<br>
Venue: {{venueName}}<br>
Date: {{date}}</p>
<p>See you there!</p>
<p>- The Synco Team</p>`

const waitingListTemplate = `<p>Hi {{parentName}},</p>
<p>{{studentName}} has been added to the waiting list for {{className}} at {{venueName}}.</p>
<p>Reference: <strong>{{bookingRef}}</strong></p>
<p>We will be in touch as soon as a place becomes available.</p>
<p>- The Synco Team</p>`

const cancellationTemplate = `<p>Hi {{parentName}},</p>
<p>Your booking {{bookingRef}} for {{className}} has been cancelled.</p>
<p>Reason: {{reason}}</p>
<p>- The Synco Team</p>`

const freezeTemplate = `<p>Hi {{parentName}},</p>
<p>Your membership {{bookingRef}} is frozen until {{reactivateOn}}.</p>
<p>- The Synco Team</p>`

func (s *Service) SendBookingConfirmation(ctx context.Context, to, parentName, studentName, bookingRef, className, venueName string, date time.Time) error {
	body := Render(bookingConfirmationTemplate, map[string]string{
		"parentName":  parentName,
		"studentName": studentName,
		"bookingRef":  bookingRef,
		"className":   className,
		"venueName":   venueName,
		"date":        date.Format("Mon, 2 Jan 2006"),
	})
	return s.Send(ctx, to, parentName, "booking_confirmation", "Booking Confirmed - "+bookingRef, body)
}

func (s *Service) SendWaitingListConfirmation(ctx context.Context, to, parentName, studentName, bookingRef, className, venueName string) error {
	body := Render(waitingListTemplate, map[string]string{
		"parentName":  parentName,
		"studentName": studentName,
		"bookingRef":  bookingRef,
		"className":   className,
		"venueName":   venueName,
	})
	return s.Send(ctx, to, parentName, "waiting_list", "Waiting List - "+bookingRef, body)
}

func (s *Service) SendCancellation(ctx context.Context, to, parentName, bookingRef, className, reason string) error {
	body := Render(cancellationTemplate, map[string]string{
		"parentName": parentName,
		"bookingRef": bookingRef,
		"className":  className,
		"reason":     reason,
	})
	return s.Send(ctx, to, parentName, "cancellation", "Booking Cancelled - "+bookingRef, body)
}

func (s *Service) SendFreezeConfirmation(ctx context.Context, to, parentName, bookingRef string, reactivateOn time.Time) error {
	body := Render(freezeTemplate, map[string]string{
		"parentName":   parentName,
		"bookingRef":   bookingRef,
		"reactivateOn": reactivateOn.Format("2 Jan 2006"),
	})
	return s.Send(ctx, to, parentName, "freeze", "Membership Frozen - "+bookingRef, body)
}
