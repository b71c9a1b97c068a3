package store

import "testing"

func TestTargetValidate(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		wantErr bool
	}{
		{
			name:   "user with id",
			target: Target{Kind: TargetUser, UserID: "u-1"},
		},
		{
			name:    "user missing id",
			target:  Target{Kind: TargetUser},
			wantErr: true,
		},
		{
			name:   "phone with number",
			target: Target{Kind: TargetPhone, PhoneNumber: "+15550100"},
		},
		{
			name:    "phone missing number",
			target:  Target{Kind: TargetPhone},
			wantErr: true,
		},
		{
			name:   "global carries no id",
			target: Target{Kind: TargetGlobal},
		},
		{
			name:   "segment with id",
			target: Target{Kind: TargetSegment, SegmentID: "beta-testers"},
		},
		{
			name:    "segment missing id",
			target:  Target{Kind: TargetSegment},
			wantErr: true,
		},
		{
			name:    "unknown kind rejected",
			target:  Target{Kind: "broadcast"},
			wantErr: true,
		},
		{
			name:    "empty kind rejected",
			target:  Target{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBribeAmount(t *testing.T) {
	req := &QueuedRequest{}
	if got := req.BribeAmount(); got != 0 {
		t.Errorf("BribeAmount() without bribe = %v, want 0", got)
	}

	req.Bribe = &Bribe{Amount: 5, Currency: "USD"}
	if got := req.BribeAmount(); got != 5 {
		t.Errorf("BribeAmount() = %v, want 5", got)
	}
}
