package cloud

import "context"

// Exchange sends req through doer, feeds the reply to d, and keeps going while
// replies chain into follow-up requests. Outcomes are returned in order.
func Exchange(ctx context.Context, doer Doer, d *Dialog, req *Request) []Outcome {
	var outcomes []Outcome
	for req != nil {
		body, err := doer.Do(ctx, req)
		out := d.HandleReply(body, err)
		outcomes = append(outcomes, out)
		req = out.FollowUp
	}
	return outcomes
}
