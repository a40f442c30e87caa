package mealplan

import "meal-planner/internal/calendar"

// GroupByDay buckets entries by meal date. Every day gets a bucket, entries dated outside
// days are dropped, and each bucket keeps the input order.
func GroupByDay(entries []Entry, days []calendar.Date) map[calendar.Date][]Entry {
	buckets := make(map[calendar.Date][]Entry, len(days))
	for _, d := range days {
		buckets[d] = []Entry{}
	}
	for _, e := range entries {
		if bucket, ok := buckets[e.MealDate]; ok {
			buckets[e.MealDate] = append(bucket, e)
		}
	}
	return buckets
}

// BuildWeekView groups entries into the ordered days of week.
func BuildWeekView(week calendar.Week, entries []Entry) WeekView {
	days := week.Days()
	buckets := GroupByDay(entries, days)

	view := WeekView{
		Week:  calendar.WeekOf(week.Start),
		Label: week.Label(),
		Days:  make([]DayPlan, 0, len(days)),
	}
	for _, d := range days {
		view.Days = append(view.Days, DayPlan{Date: d, Entries: buckets[d]})
	}
	return view
}
