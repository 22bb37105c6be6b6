package handlers

import (
	"strconv"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
)

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func confirmFor(id int64) checkin.ConfirmAdmitRequest {
	return checkin.ConfirmAdmitRequest{ParticipantID: id}
}
