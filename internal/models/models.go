package models

import "time"

type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	QuotaMB       int64      `json:"quota_mb"`
	UsedMB        int64      `json:"used_mb"`
	QuotaDeadline *time.Time `json:"quota_deadline,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	IsAdmin       bool       `json:"is_admin"`
}

// HasQuota reports whether a storage quota applies to the user.
func (u *User) HasQuota() bool {
	return u.QuotaMB >= 0
}

// IsOverQuota reports whether usage exceeds a set quota.
func (u *User) IsOverQuota() bool {
	return u.HasQuota() && u.UsedMB > u.QuotaMB
}

type StorageInfo struct {
	QuotaMB       int64      `json:"quota_mb"`
	UsedMB        int64      `json:"used_mb"`
	Percentage    float64    `json:"percentage"`
	OverQuota     bool       `json:"over_quota"`
	QuotaDeadline *time.Time `json:"quota_deadline,omitempty"`
}

type AppSetting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Theme struct {
	HTMLFooter string `json:"html_footer"`
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
}

// ImageRef points at an uploaded file under the media root.
type ImageRef struct {
	Name string `json:"name"`
}

// Settings is the read-only branding snapshot exposed to templates.
type Settings struct {
	AppName             string              `json:"app_name"`
	OrganizationName    string              `json:"organization_name"`
	OrganizationWebsite string              `json:"organization_website"`
	Theme               Theme               `json:"theme"`
	Images              map[string]ImageRef `json:"images"`
}

// Image returns the reference stored for field, if any.
func (s *Settings) Image(field string) (ImageRef, bool) {
	ref, ok := s.Images[field]
	if !ok || ref.Name == "" {
		return ImageRef{}, false
	}
	return ref, true
}

type AdminUserInfo struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	QuotaMB       int64      `json:"quota_mb"`
	UsedMB        int64      `json:"used_mb"`
	QuotaDeadline *time.Time `json:"quota_deadline,omitempty"`
	IsAdmin       bool       `json:"is_admin"`
	CreatedAt     time.Time  `json:"created_at"`
}
