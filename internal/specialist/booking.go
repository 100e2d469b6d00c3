package specialist

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anvie-labs/chat-orchestrator/internal/fault"
	"github.com/anvie-labs/chat-orchestrator/internal/model"
	"github.com/anvie-labs/chat-orchestrator/internal/repository"
	"github.com/anvie-labs/chat-orchestrator/internal/state"
	"github.com/anvie-labs/chat-orchestrator/pkg/logger"
)

// bookingBuffer keeps a gap between adjacent appointments.
const bookingBuffer = 5 * time.Minute

var (
	datePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	timePattern = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
)

// Booking books spa appointments: it matches a service, finds a free
// room and staff member for the requested slot and commits the
// appointment before updating state with the canonical row.
type Booking struct {
	services     repository.ServiceRepo
	appointments repository.AppointmentRepo
	rooms        repository.RoomRepo
	staff        repository.StaffRepo
	logger       *logger.Logger
}

// NewBooking creates the booking specialist.
func NewBooking(
	services repository.ServiceRepo,
	appointments repository.AppointmentRepo,
	rooms repository.RoomRepo,
	staff repository.StaffRepo,
	log *logger.Logger,
) *Booking {
	return &Booking{
		services:     services,
		appointments: appointments,
		rooms:        rooms,
		staff:        staff,
		logger:       log,
	}
}

func (b *Booking) Name() string { return "booking" }

func (b *Booking) Handle(ctx context.Context, st *state.State) (*Result, error) {
	services, err := b.services.All(ctx)
	if err != nil {
		return nil, fault.Infrastructure("service catalog", err)
	}
	if len(services) == 0 {
		return newResult(b.Name(),
			"Dạ hiện tại spa chưa mở nhận lịch, khách quay lại sau giúp em nhé.",
			true), nil
	}

	service := matchService(st.UserInput, services)
	if service == nil {
		return newResult(b.Name(), serviceMenu(services), true), nil
	}

	if st.Name == nil || *st.Name == "" || st.Phone == nil || *st.Phone == "" {
		return newResult(b.Name(),
			"Dạ khách cho em xin tên và số điện thoại để em giữ lịch giúp khách nhé.",
			true), nil
	}

	bookingDate := datePattern.FindString(st.UserInput)
	startMatch := timePattern.FindStringSubmatch(st.UserInput)
	if bookingDate == "" || startMatch == nil {
		return newResult(b.Name(),
			fmt.Sprintf("Dạ khách muốn đặt %s vào ngày giờ nào ạ? Khách ghi theo dạng 2025-01-15 14:00 giúp em nhé.", service.Name),
			true), nil
	}

	start, err := time.Parse("15:04", fmt.Sprintf("%s:%s", startMatch[1], startMatch[2]))
	if err != nil {
		return newResult(b.Name(),
			"Dạ em chưa đọc được giờ hẹn, khách ghi theo dạng 14:00 giúp em nhé.",
			true), nil
	}
	end := start.Add(time.Duration(service.Duration) * time.Minute)
	if end.Day() != start.Day() {
		// A slot that runs past midnight would wrap the end clock time
		// and invert the overlap window for that day.
		return newResult(b.Name(),
			fmt.Sprintf("Dạ giờ này trễ quá ạ, dịch vụ %s kéo dài %d phút sẽ qua nửa đêm mất. Khách chọn giúp em khung giờ sớm hơn trong ngày nhé.", service.Name, service.Duration),
			true), nil
	}
	startTime := start.Format("15:04")
	endTime := end.Format("15:04")

	overlapping, err := b.appointments.Overlapping(ctx, bookingDate, startTime, endTime, bookingBuffer)
	if err != nil {
		return nil, fault.Infrastructure("appointment overlap check", err)
	}

	room, staffMember, err := b.pickRoomAndStaff(ctx, overlapping)
	if err != nil {
		return nil, err
	}
	if room == nil || staffMember == nil {
		return newResult(b.Name(),
			fmt.Sprintf("Dạ khung giờ %s ngày %s bên em đã kín lịch ạ. Khách chọn giúp em khung giờ khác nhé.", startTime, bookingDate),
			true), nil
	}

	created, err := b.appointments.Create(ctx, repository.BookingDraft{
		CustomerID:  customerIDOrZero(st),
		ServiceID:   service.ServiceID,
		ServiceName: service.Name,
		RoomID:      room.ID,
		StaffID:     staffMember.ID,
		StaffName:   staffMember.Name,
		BookingDate: bookingDate,
		StartTime:   startTime,
		EndTime:     endTime,
	})
	if err != nil {
		return nil, fault.Infrastructure("appointment create", err)
	}
	if created == nil {
		return newResult(b.Name(),
			"Dạ em chưa giữ được lịch cho khách, khách vui lòng thử lại giúp em ạ.",
			true), nil
	}

	canonical, err := b.appointments.Details(ctx, created.BookingID)
	if err != nil {
		return nil, fault.Infrastructure("appointment details", err)
	}
	if canonical == nil {
		canonical = created
	}

	b.logger.Info("appointment booked",
		zap.Int64("booking_id", canonical.BookingID),
		zap.String("date", bookingDate),
		zap.String("start", startTime),
	)

	bookings := make(map[int64]model.Booking, len(st.Bookings)+1)
	for k, v := range st.Bookings {
		bookings[k] = v
	}
	bookings[canonical.BookingID] = *canonical

	reply := fmt.Sprintf(
		"Dạ em đã đặt lịch %s cho khách ạ.\nMã lịch hẹn: %d\nNgày: %s\nGiờ: %s - %s\nPhòng: %s\nNhân viên phục vụ: %s\nEm hẹn gặp khách tại AnVie Spa ạ 🌸",
		canonical.ServiceName, canonical.BookingID, canonical.BookingDate,
		canonical.StartTime, canonical.EndTime, room.Name, canonical.StaffName,
	)

	res := newResult(b.Name(), reply, true)
	res.Update.Bookings = bookings
	return res, nil
}

// pickRoomAndStaff returns the first room with spare capacity and the
// first staff member not already serving an overlapping appointment.
func (b *Booking) pickRoomAndStaff(ctx context.Context, overlapping []model.Booking) (*model.Room, *model.Staff, error) {
	rooms, err := b.rooms.All(ctx)
	if err != nil {
		return nil, nil, fault.Infrastructure("room list", err)
	}
	staff, err := b.staff.All(ctx)
	if err != nil {
		return nil, nil, fault.Infrastructure("staff list", err)
	}

	busyByRoom := make(map[int64]int64)
	busyStaff := make(map[int64]struct{})
	for _, o := range overlapping {
		busyByRoom[o.RoomID]++
		busyStaff[o.StaffID] = struct{}{}
	}

	var room *model.Room
	for _, r := range rooms {
		if busyByRoom[r.ID] < r.Capacity {
			cp := r
			room = &cp
			break
		}
	}

	var member *model.Staff
	for _, s := range staff {
		if _, busy := busyStaff[s.ID]; !busy {
			cp := s
			member = &cp
			break
		}
	}

	return room, member, nil
}

func matchService(input string, services []model.Service) *model.Service {
	lowered := strings.ToLower(input)
	for _, s := range services {
		if strings.Contains(lowered, strings.ToLower(s.Name)) {
			cp := s
			return &cp
		}
	}
	for _, n := range extractNumbers(input) {
		for _, s := range services {
			if s.ServiceID == n {
				cp := s
				return &cp
			}
		}
	}
	return nil
}

func serviceMenu(services []model.Service) string {
	var b strings.Builder
	b.WriteString("Dạ bên em đang có các dịch vụ sau ạ:\n")
	for _, s := range services {
		fmt.Fprintf(&b, "- %s (mã %d): %d phút, giá %s\n", s.Name, s.ServiceID, s.Duration, formatVND(s.Price))
	}
	b.WriteString("Khách muốn đặt dịch vụ nào ạ?")
	return b.String()
}

func customerIDOrZero(st *state.State) int64 {
	if st.CustomerID == nil {
		return 0
	}
	return *st.CustomerID
}
