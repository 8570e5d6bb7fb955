package models

// Profile — выжимка из /v1/account/me.
type Profile struct {
	FullName     string  `json:"fullName"`
	IsStudent    bool    `json:"isStudent"`
	GroupName    *string `json:"groupName"`
	SemesterCode *string `json:"semesterCode,omitempty"`
}

func (p Profile) Role() Role {
	if p.IsStudent {
		return Student
	}
	return Teacher
}
